package enginectx

import (
	"io"
	"sync/atomic"
	"testing"
	"time"

	"code.hybscloud.com/enginecore/task"
)

func TestSpawnTaskRunsAndCompletes(t *testing.T) {
	ctx := New(io.Discard)
	defer ctx.Close()

	var ran int32
	tk := ctx.SpawnTask(task.PriorityDefault, nil, func(*task.CancellationToken) {
		atomic.StoreInt32(&ran, 1)
	})

	if !tk.WaitFor(2 * time.Second) {
		t.Fatal("spawned task never completed")
	}
	if atomic.LoadInt32(&ran) != 1 {
		t.Fatal("task body did not run")
	}
}

func TestTwoContextsAreIndependent(t *testing.T) {
	a := New(io.Discard)
	defer a.Close()
	b := New(io.Discard)
	defer b.Close()

	if a.Links == b.Links {
		t.Fatal("two Contexts share the same link pool")
	}
	if a.Scheduler == b.Scheduler {
		t.Fatal("two Contexts share the same scheduler")
	}

	// Allocating from a must not perturb b's independent bump counter: both
	// pools start fresh, so b's first allocation lands at the same index a's
	// did, even after a has allocated several links of its own. A fresh
	// pool's first bundle is indices 1..64 with index 64 at its head, so the
	// first allocation is index 64.
	a.Links.Allocate()
	a.Links.Allocate()
	first := b.Links.Allocate()
	if first.Index() != 64 {
		t.Fatalf("b's first allocation has index %d, want 64 (a's allocations must not affect b)", first.Index())
	}
}

func TestWithFrameArenaCapacityHonored(t *testing.T) {
	ctx := New(io.Discard, WithFrameArenaCapacity(2, 2))
	defer ctx.Close()

	off := ctx.Frame.AllocateBones(1)
	if off != 0 {
		t.Fatalf("offset = %d, want 0", off)
	}
}
