package event

import (
	"unsafe"

	"code.hybscloud.com/lfq"
)

// Pool is a lock-free free list of Events of one Mode: Acquire pops an
// idle Event of that mode, constructing a new one on empty, and Release
// resets it and pushes it back.
//
// The underlying free list is lfq.MPMCPtr (a bounded MPMC queue,
// unsafe.Pointer-valued rather than MPMCIndirect's uintptr-valued variant):
// a uintptr free list would hide a pooled *Event from the garbage collector
// while it sits between Release and the next Acquire, which would be a
// use-after-free waiting to happen.
type Pool struct {
	mode Mode
	free *lfq.MPMCPtr
}

// NewPool constructs an event Pool with room for up to capacity idle
// Events; once it is full, Release drops further returned Events (the free
// list rejecting a push is treated as "let the GC have it").
func NewPool(mode Mode, capacity int) *Pool {
	return &Pool{mode: mode, free: lfq.NewMPMCPtr(capacity)}
}

// Ref is a non-clonable borrow handle: the caller that acquired it is the
// only one responsible for calling Release.
type Ref struct {
	pool *Pool
	ev   *Event
}

// Acquire pops an idle Event from the pool, constructing a new one if the
// pool was empty.
func (p *Pool) Acquire() Ref {
	if raw, err := p.free.Dequeue(); err == nil {
		return Ref{pool: p, ev: (*Event)(raw)}
	}
	return Ref{pool: p, ev: New(p.mode)}
}

// Event returns the underlying Event for this borrow.
func (r Ref) Event() *Event { return r.ev }

// Release resets the Event and returns it to the pool. If the pool is at
// capacity, the Event is simply dropped, left for the garbage collector.
func (r Ref) Release() {
	r.ev.Reset()
	_ = r.pool.free.Enqueue(unsafe.Pointer(r.ev))
}
