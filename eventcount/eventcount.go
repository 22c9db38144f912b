// Package eventcount implements a missed-wakeup-free notification counter:
// the low bit of an atomic counter marks "waiters present"; PrepareWait hands
// out a token that Wait uses to detect whether a Notify already happened.
//
// Ported from OloEngine's EventCount.h (itself ported from UE5.7's
// Async/EventCount.h).
package eventcount

import (
	"time"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/enginecore/parkinglot"
	"code.hybscloud.com/spin"
)

// Token is acquired from PrepareWait before re-checking a condition, so a
// Notify racing the check is never missed: Wait returns immediately once the
// counter no longer matches the token.
type Token struct {
	value uint64
}

// Ready reports whether the token's value has the waiters-present bit
// clear. That holds for every Token returned by PrepareWait, and also for
// the zero Token (value 0), so Ready does not tell an unassigned Token apart
// from an assigned one.
func (t Token) Ready() bool { return t.value&1 == 0 }

// EventCount is a counter-based notification primitive suited to polling a
// condition that changes on another goroutine. The zero value is ready to
// use.
type EventCount struct {
	count atomix.Uint64
}

// PrepareWait must be called before the logic that must re-execute if a
// Notify happens in the meantime.
func (ec *EventCount) PrepareWait() Token {
	value := ec.count.LoadRelaxed() &^ 1
	// Sets the waiters-present bit with a CAS loop (no fetch-or primitive):
	// only the bit needs to end up set, so a racing PrepareWait that wins is
	// harmless, and spin.Wait bounds the retry the same way lfq's own
	// CAS loops do.
	var w spin.Wait
	for {
		cur := ec.count.LoadRelaxed()
		if cur&1 != 0 {
			break
		}
		if ec.count.CompareAndSwapAcqRel(cur, cur|1) {
			break
		}
		w.Once()
	}
	return Token{value: value}
}

func (ec *EventCount) addr() uintptr {
	return parkinglot.AddressOf(unsafe.Pointer(&ec.count))
}

// Wait blocks until Notify is called with a count that has advanced past
// token, or returns immediately if that already happened before the call.
func (ec *EventCount) Wait(token Token) {
	if ec.count.LoadAcquire()&^1 != token.value {
		return
	}
	parkinglot.Wait(ec.addr(), func() bool {
		return ec.count.LoadAcquire()&^1 == token.value
	}, nil)
}

// WaitFor is Wait with a relative timeout. It returns true if notified
// before the timeout elapsed (including if the condition already changed
// before the wait began), false on timeout.
func (ec *EventCount) WaitFor(token Token, timeout time.Duration) bool {
	if ec.count.LoadAcquire()&^1 != token.value {
		return true
	}
	state := parkinglot.WaitFor(ec.addr(), func() bool {
		return ec.count.LoadAcquire()&^1 == token.value
	}, nil, timeout)
	return state.DidWake || !state.DidWait
}

// WaitUntil is Wait with an absolute deadline.
func (ec *EventCount) WaitUntil(token Token, deadline time.Time) bool {
	if ec.count.LoadAcquire()&^1 != token.value {
		return true
	}
	state := parkinglot.WaitUntil(ec.addr(), func() bool {
		return ec.count.LoadAcquire()&^1 == token.value
	}, nil, deadline)
	return state.DidWake || !state.DidWait
}

// Notify wakes every waiter whose token predates this call. The counter's
// value bits (everything but the waiters-present flag) always advance,
// whether or not any waiter was present, so every Notify is observable by a
// PrepareWait/Wait pair that straddles it — never a silent no-op.
func (ec *EventCount) Notify() {
	ec.notify(ec.count.CompareAndSwapAcqRel)
}

// NotifyWeak is Notify without the acquire/release StoreLoad barrier; the
// caller is responsible for the memory ordering of whatever value it is
// synchronizing against this EventCount.
func (ec *EventCount) NotifyWeak() {
	ec.notify(ec.count.CompareAndSwapRelaxed)
}

func (ec *EventCount) notify(cas func(old, new uint64) bool) {
	var w spin.Wait
	for {
		cur := ec.count.LoadRelaxed()
		next := (cur &^ 1) + 2
		if cas(cur, next) {
			if cur&1 != 0 {
				parkinglot.WakeAll(ec.addr())
			}
			return
		}
		w.Once()
	}
}
