package event

import (
	"sync"
	"testing"
	"time"
)

func TestManualResetEventStaysSignaled(t *testing.T) {
	e := New(ModeManual)
	e.Trigger()
	e.Wait()
	e.Wait() // a manual-reset event stays signaled until Reset
}

func TestManualResetEventRoundTripLaw(t *testing.T) {
	// trigger . reset . trigger behaves the same as trigger alone: a Wait
	// after either sequence must return immediately.
	e := New(ModeManual)
	e.Trigger()
	e.Reset()
	e.Trigger()
	if !e.WaitFor(10 * time.Millisecond) {
		t.Fatal("expected Wait to return immediately after trigger.reset.trigger")
	}
}

func TestAutoResetEventConsumedOnce(t *testing.T) {
	e := New(ModeAuto)
	e.Trigger()
	e.Wait()
	if e.WaitFor(10 * time.Millisecond) {
		t.Fatal("auto-reset event should have cleared itself after one Wait")
	}
}

func TestWaitForTimesOutWhenNeverTriggered(t *testing.T) {
	e := New(ModeManual)
	start := time.Now()
	if e.WaitFor(20 * time.Millisecond) {
		t.Fatal("expected WaitFor to time out")
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatal("WaitFor returned suspiciously early")
	}
}

// TestPingPongAutoResetEvents exercises two auto-reset events handing
// control back and forth, the way two cooperating goroutines would.
func TestPingPongAutoResetEvents(t *testing.T) {
	ping := New(ModeAuto)
	pong := New(ModeAuto)
	const iterations = 1000

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			ping.Wait()
			pong.Trigger()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			ping.Trigger()
			pong.Wait()
		}
	}()
	wg.Wait()
}

func TestSemaphoreReleaseZeroBlocksAllAcquires(t *testing.T) {
	s := NewSemaphore(0)
	s.Release(0)
	for i := 0; i < 3; i++ {
		if s.AcquireFor(10 * time.Millisecond) {
			t.Fatal("expected Acquire to block with zero permits available")
		}
	}
}

func TestSemaphoreAcquireReleaseRoundTrip(t *testing.T) {
	s := NewSemaphore(2)
	s.Acquire()
	s.Acquire()
	if s.AcquireFor(10 * time.Millisecond) {
		t.Fatal("expected semaphore to be exhausted")
	}
	s.Release(1)
	if !s.AcquireFor(10 * time.Millisecond) {
		t.Fatal("expected permit to be available after Release")
	}
}

func TestSemaphoreManyWaitersEachGetOnePermit(t *testing.T) {
	const n = 16
	s := NewSemaphore(0)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			s.Acquire()
		}()
	}
	time.Sleep(10 * time.Millisecond)
	s.Release(n)
	wg.Wait()
}

func TestRecursiveMutexReentrant(t *testing.T) {
	var m RecursiveMutex
	m.Lock()
	m.Lock()
	m.Unlock()
	m.Unlock()

	done := make(chan struct{})
	go func() {
		m.Lock()
		m.Unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second goroutine failed to acquire released mutex")
	}
}

func TestRecursiveMutexExcludesOtherGoroutines(t *testing.T) {
	var m RecursiveMutex
	var counter int
	var wg sync.WaitGroup
	const goroutines = 8
	const perGoroutine = 200

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				m.Lock()
				counter++
				m.Unlock()
			}
		}()
	}
	wg.Wait()

	if counter != goroutines*perGoroutine {
		t.Fatalf("counter = %d, want %d", counter, goroutines*perGoroutine)
	}
}

func TestPoolReusesReleasedEvent(t *testing.T) {
	p := NewPool(ModeAuto, 4)
	ref := p.Acquire()
	first := ref.Event()
	ref.Release()

	ref2 := p.Acquire()
	if ref2.Event() != first {
		t.Fatal("expected pool to reuse the released event")
	}
}

func TestPoolAcquireConstructsWhenEmpty(t *testing.T) {
	p := NewPool(ModeManual, 4)
	ref := p.Acquire()
	if ref.Event() == nil {
		t.Fatal("expected Acquire to construct a fresh event")
	}
}
