package parkinglot

import (
	"sync"
	"testing"
	"time"
	"unsafe"
)

func uintptrOf(p *int) uintptr { return uintptr(unsafe.Pointer(p)) }

// TestWakeOrderFIFO mirrors spec scenario E: waiters queued in order must be
// woken in the same order.
func TestWakeOrderFIFO(t *testing.T) {
	var addr int
	key := addrOf(&addr)

	const n = 5
	order := make(chan int, n)
	var started sync.WaitGroup
	started.Add(n)

	for i := 0; i < n; i++ {
		i := i
		go func() {
			started.Done()
			Wait(key, nil, nil)
			order <- i
		}()
		time.Sleep(time.Millisecond)
	}
	started.Wait()
	time.Sleep(5 * time.Millisecond)

	for i := 0; i < n; i++ {
		WakeOne(key, nil)
		time.Sleep(10 * time.Millisecond)
	}

	for i := 0; i < n; i++ {
		got := <-order
		if got != i {
			t.Fatalf("wake order: want %d, got %d", i, got)
		}
	}
}

func TestWaitCanWaitFalseReturnsImmediately(t *testing.T) {
	var addr int
	state := Wait(addrOf(&addr), func() bool { return false }, nil)
	if state.DidWait || state.DidWake {
		t.Fatalf("expected no wait, got %+v", state)
	}
}

func TestWaitForTimeout(t *testing.T) {
	var addr int
	state := WaitFor(addrOf(&addr), nil, nil, 5*time.Millisecond)
	if !state.DidWait || state.DidWake {
		t.Fatalf("expected a timed-out wait, got %+v", state)
	}
}

func TestWaitForZeroDurationPolls(t *testing.T) {
	var addr int
	called := false
	state := WaitFor(addrOf(&addr), func() bool { called = true; return true }, nil, 0)
	if !called || !state.DidWait || state.DidWake {
		t.Fatalf("expected a poll-only wait, got %+v (called=%v)", state, called)
	}
}

func TestWakeAllWakesEveryWaiter(t *testing.T) {
	var addr int
	key := addrOf(&addr)

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			Wait(key, nil, nil)
			wg.Done()
		}()
	}
	time.Sleep(10 * time.Millisecond)

	woken := WakeAll(key)
	if woken != n {
		t.Fatalf("WakeAll: want %d, got %d", n, woken)
	}
	wg.Wait()
}

func addrOf(p *int) uintptr { return uintptrOf(p) }
