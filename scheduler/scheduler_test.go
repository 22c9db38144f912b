package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"code.hybscloud.com/enginecore/task"
)

func TestLaunchGlobalRunsTask(t *testing.T) {
	s := New(nil)
	defer s.Close()

	var ran int32
	tk := task.New(task.PriorityDefault, nil, func(*task.CancellationToken) {
		atomic.StoreInt32(&ran, 1)
	})

	s.Launch(tk, PreferenceGlobal)
	tk.Wait()

	if atomic.LoadInt32(&ran) != 1 {
		t.Fatal("task did not run")
	}
}

func TestLaunchManyTasksAllComplete(t *testing.T) {
	s := New(nil)
	defer s.Close()

	const n = 2000
	var completed int64
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		tk := task.New(task.PriorityDefault, nil, func(*task.CancellationToken) {
			atomic.AddInt64(&completed, 1)
			wg.Done()
		})
		s.Launch(tk, PreferenceGlobal)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("only %d/%d tasks completed before timeout", atomic.LoadInt64(&completed), n)
	}
}

func TestPriorityQueuesAllDrained(t *testing.T) {
	s := New(nil)
	defer s.Close()

	var wg sync.WaitGroup
	priorities := []task.Priority{task.PriorityHigh, task.PriorityDefault, task.PriorityBackground}
	for _, p := range priorities {
		for i := 0; i < 50; i++ {
			wg.Add(1)
			tk := task.New(p, nil, func(*task.CancellationToken) { wg.Done() })
			s.Launch(tk, PreferenceGlobal)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("not all priority tasks completed")
	}
}

func TestOversubscriptionScopeWakesReserveWorker(t *testing.T) {
	s := New(nil)
	defer s.Close()

	scope := s.EnterOversubscription()
	defer scope.Exit()

	var ran int32
	tk := task.New(task.PriorityDefault, nil, func(*task.CancellationToken) {
		atomic.StoreInt32(&ran, 1)
	})
	s.Launch(tk, PreferenceGlobal)

	if !tk.WaitFor(2 * time.Second) {
		t.Fatal("task did not complete with oversubscription scope active")
	}
	if atomic.LoadInt32(&ran) != 1 {
		t.Fatal("task body did not run")
	}
}

func TestTaskRetractPreventsExecution(t *testing.T) {
	s := New(nil)
	defer s.Close()

	var ran int32
	tk := task.New(task.PriorityBackground, nil, func(*task.CancellationToken) {
		atomic.StoreInt32(&ran, 1)
	})

	s.Launch(tk, PreferenceGlobal)
	// Best-effort: retract racing the scheduler. Either the retract wins (in
	// which case the task must never run) or the scheduler already grabbed
	// it (in which case it must have run). Re-launch if we won the retract,
	// so the test still observes completion either way.
	if tk.Retract() {
		if atomic.LoadInt32(&ran) != 0 {
			t.Fatal("task ran despite Retract succeeding first")
		}
		s.Launch(tk, PreferenceGlobal)
	}
	if !tk.WaitFor(2 * time.Second) {
		t.Fatal("task never completed")
	}
}
