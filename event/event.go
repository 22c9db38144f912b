// Package event implements the platform-independent wait primitives built
// directly on parkinglot: manual-reset and auto-reset events, a counting
// semaphore, and a recursive spin mutex.
//
// Grounded on the source's event/semaphore/mutex design, adapted from
// OS-level wait handles to goroutine parking.
package event

import (
	"time"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/enginecore/parkinglot"
)

// Event is a manual-reset or auto-reset synchronization flag, selected by
// Mode at construction.
//
// Invariant: after Trigger returns, any subsequent Wait returns without
// blocking until, for an auto-reset Event, exactly one Wait has consumed the
// signal, or, for a manual-reset Event, Reset is called.
type Event struct {
	signaled atomix.Bool
	auto     bool
}

// Mode selects manual-reset or auto-reset semantics for a new Event.
type Mode int

const (
	ModeManual Mode = iota
	ModeAuto
)

// New constructs an Event in the given mode, initially unsignaled.
func New(mode Mode) *Event {
	return &Event{auto: mode == ModeAuto}
}

func (e *Event) addr() uintptr { return parkinglot.AddressOf(unsafe.Pointer(&e.signaled)) }

// Trigger signals the event, waking waiters per the event's mode.
func (e *Event) Trigger() {
	e.signaled.Store(true)
	if e.auto {
		parkinglot.WakeOne(e.addr(), nil)
	} else {
		parkinglot.WakeAll(e.addr())
	}
}

// Reset clears the signal. A manual-reset Event must be explicitly reset; an
// auto-reset Event clears itself on the first consuming Wait, so Reset on it
// is a rarely-needed escape hatch.
func (e *Event) Reset() { e.signaled.Store(false) }

// claim is the consuming check: it reports whether the event was (and, for
// auto-reset, still is) signaled, atomically clearing it for auto-reset.
func (e *Event) claim() bool {
	if e.auto {
		return e.signaled.CompareAndSwapAcqRel(true, false)
	}
	return e.signaled.Load()
}

// notClaimed is the parkinglot CanWait predicate: a read-only recheck,
// evaluated with the bucket locked, so enqueue is atomic with a concurrent
// Trigger. The actual claim happens outside the lock, in claim, both before
// enqueuing (fast path) and again after every wake (a waiter can lose a race
// for an auto-reset signal to another waiter and must retry).
func (e *Event) notClaimed() bool { return !e.signaled.Load() }

// Wait blocks until the event is signaled.
func (e *Event) Wait() {
	for !e.claim() {
		parkinglot.Wait(e.addr(), e.notClaimed, nil)
	}
}

// WaitFor is Wait with a relative timeout; it reports whether the event
// became signaled before the timeout elapsed.
func (e *Event) WaitFor(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for !e.claim() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return e.claim()
		}
		state := parkinglot.WaitFor(e.addr(), e.notClaimed, nil, remaining)
		if !state.DidWake && state.DidWait {
			return e.claim()
		}
	}
	return true
}

// WaitUntil is Wait with an absolute deadline.
func (e *Event) WaitUntil(deadline time.Time) bool {
	for !e.claim() {
		if !deadline.After(time.Now()) {
			return e.claim()
		}
		state := parkinglot.WaitUntil(e.addr(), e.notClaimed, nil, deadline)
		if !state.DidWake && state.DidWait {
			return e.claim()
		}
	}
	return true
}
