package event

import (
	"time"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/enginecore/parkinglot"
	"code.hybscloud.com/spin"
)

// Semaphore is a non-negative counting semaphore built on the parking lot.
// The zero value starts at count 0.
type Semaphore struct {
	count atomix.Int64
}

// NewSemaphore constructs a Semaphore with the given initial count.
func NewSemaphore(initial int64) *Semaphore {
	s := &Semaphore{}
	s.count.Store(initial)
	return s
}

func (s *Semaphore) addr() uintptr { return parkinglot.AddressOf(unsafe.Pointer(&s.count)) }

// claim attempts to take one permit via a bounded CAS retry, reporting
// whether it succeeded.
func (s *Semaphore) claim() bool {
	var w spin.Wait
	for {
		cur := s.count.Load()
		if cur <= 0 {
			return false
		}
		if s.count.CompareAndSwapAcqRel(cur, cur-1) {
			return true
		}
		w.Once()
	}
}

// notClaimable is the parkinglot CanWait predicate: a read-only recheck of
// whether any permit was visible at enqueue time. The real claim (and its
// retry after each wake, since Release may wake more waiters than it
// actually grants permits to) happens in claim.
func (s *Semaphore) notClaimable() bool { return s.count.Load() <= 0 }

// Acquire blocks until a permit is available, then claims it.
func (s *Semaphore) Acquire() {
	for !s.claim() {
		parkinglot.Wait(s.addr(), s.notClaimable, nil)
	}
}

// AcquireFor is Acquire with a relative timeout; it reports whether a permit
// was claimed before the timeout elapsed.
func (s *Semaphore) AcquireFor(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for !s.claim() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return s.claim()
		}
		state := parkinglot.WaitFor(s.addr(), s.notClaimable, nil, remaining)
		if !state.DidWake && state.DidWait {
			return s.claim()
		}
	}
	return true
}

// Release returns n permits to the semaphore and wakes up to n waiters.
func (s *Semaphore) Release(n int64) {
	if n <= 0 {
		return
	}
	s.count.AddAcqRel(n)
	parkinglot.WakeMultiple(s.addr(), int(n))
}
