// Package parkinglot implements an address-keyed global wait-queue table,
// the way Unreal Engine's UE::ParkingLot does: any address can serve as a
// synchronization rendezvous without a dedicated per-address allocation.
//
// Ported from OloEngine's ParkingLot.h. The C++ original blocks an OS thread
// directly; this port blocks a goroutine on a channel instead, since Go has
// no equivalent to a raw per-thread wait handle.
package parkinglot

import (
	"container/list"
	"sync"
	"time"
	"unsafe"
)

// AddressOf converts a pointer to the uintptr key used by every operation in
// this package. Any stable address works as a key, including the address of
// a field inside a larger struct such as an eventcount counter.
func AddressOf(p unsafe.Pointer) uintptr { return uintptr(p) }

// WaitState is returned by Wait, WaitFor, and WaitUntil.
type WaitState struct {
	DidWait   bool   // true only if CanWait returned true
	DidWake   bool   // true only if a Wake call woke the waiter; false for a timeout or cancel
	WakeToken uint64 // optional value supplied by the waker's OnWakeState callback
}

// WakeState is passed to the OnWakeState callback given to WakeOne.
type WakeState struct {
	DidWake  bool // did a waiter actually wake up
	HasMore  bool // does the bucket maybe still have another waiter queued
}

type waiter struct {
	wake  chan struct{}
	token uint64
}

type bucket struct {
	mu      sync.Mutex
	waiters list.List // of *waiter, FIFO: front is oldest
}

var (
	tableOnce sync.Once
	table     []bucket
	tableHint = 256 // default bucket count if Reserve is never called
)

// Reserve sizes the bucket table for an expected thread count, before first
// use. Buckets are never rehashed, so calling Reserve after the table has
// already been lazily created from the default hint has no effect.
func Reserve(threadCount int) {
	if threadCount < 1 {
		return
	}
	n := nextPow2(threadCount * 4)
	var applied bool
	tableOnce.Do(func() {
		table = make([]bucket, n)
		applied = true
	})
	_ = applied // hint only takes effect on the Do that wins the race
}

func ensureTable() {
	tableOnce.Do(func() {
		table = make([]bucket, nextPow2(tableHint))
	})
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func bucketFor(addr uintptr) *bucket {
	ensureTable()
	h := fnv1a(addr)
	return &table[h&uint64(len(table)-1)]
}

func fnv1a(addr uintptr) uint64 {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	h := uint64(offset)
	v := uint64(addr)
	for i := 0; i < 8; i++ {
		h ^= v & 0xff
		h *= prime
		v >>= 8
	}
	return h
}

// CanWaitFunc is evaluated with the bucket locked; returning false cancels
// the wait before the caller ever enqueues.
type CanWaitFunc func() bool

// BeforeWaitFunc runs after the waiter is enqueued and the bucket is
// unlocked, immediately before the goroutine actually blocks.
type BeforeWaitFunc func()

// Wait enqueues the caller on addr's bucket and blocks until woken, unless
// canWait (called with the bucket locked) returns false. A nil canWait
// always waits; a nil beforeWait is skipped.
func Wait(addr uintptr, canWait CanWaitFunc, beforeWait BeforeWaitFunc) WaitState {
	return waitImpl(addr, canWait, beforeWait, nil)
}

// WaitFor is Wait with a relative timeout.
func WaitFor(addr uintptr, canWait CanWaitFunc, beforeWait BeforeWaitFunc, timeout time.Duration) WaitState {
	if timeout <= 0 {
		return pollOnce(canWait)
	}
	deadline := time.Now().Add(timeout)
	return waitImpl(addr, canWait, beforeWait, &deadline)
}

// WaitUntil is Wait with an absolute deadline.
func WaitUntil(addr uintptr, canWait CanWaitFunc, beforeWait BeforeWaitFunc, deadline time.Time) WaitState {
	if !deadline.After(time.Now()) {
		return pollOnce(canWait)
	}
	return waitImpl(addr, canWait, beforeWait, &deadline)
}

// pollOnce implements the "negative/zero duration means poll" rule shared by
// every timed wait in this module.
func pollOnce(canWait CanWaitFunc) WaitState {
	if canWait != nil && !canWait() {
		return WaitState{}
	}
	return WaitState{DidWait: true}
}

func waitImpl(addr uintptr, canWait CanWaitFunc, beforeWait BeforeWaitFunc, deadline *time.Time) WaitState {
	b := bucketFor(addr)

	b.mu.Lock()
	if canWait != nil && !canWait() {
		b.mu.Unlock()
		return WaitState{}
	}
	w := &waiter{wake: make(chan struct{}, 1)}
	elem := b.waiters.PushBack(w)
	b.mu.Unlock()

	if beforeWait != nil {
		beforeWait()
	}

	if deadline == nil {
		<-w.wake
		return WaitState{DidWait: true, DidWake: true, WakeToken: w.token}
	}

	timer := time.NewTimer(time.Until(*deadline))
	defer timer.Stop()
	select {
	case <-w.wake:
		return WaitState{DidWait: true, DidWake: true, WakeToken: w.token}
	case <-timer.C:
		b.mu.Lock()
		// If a waker already removed us from the list between the timer
		// firing and acquiring the lock, honor the wake instead of the
		// timeout: a real wakeup that raced the deadline still counts.
		select {
		case <-w.wake:
			b.mu.Unlock()
			return WaitState{DidWait: true, DidWake: true, WakeToken: w.token}
		default:
		}
		b.waiters.Remove(elem)
		b.mu.Unlock()
		return WaitState{DidWait: true, DidWake: false}
	}
}
