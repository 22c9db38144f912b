package linklist

import "code.hybscloud.com/enginecore/linkpool"

// FIFO is a Michael-Scott style lock-free queue: a dummy node always
// precedes the first real element, so enqueue and dequeue never special-case
// an empty queue. The dummy is not permanent: each successful Dequeue frees
// the current head node and the dequeued element's node becomes the new
// dummy.
type FIFO struct {
	pool    *linkpool.Pool
	head    linkpool.AtomicLinkRef
	tail    linkpool.AtomicLinkRef
	sentinel linkpool.LinkRef
}

// NewFIFO constructs an empty FIFO backed by pool, allocating its initial
// dummy node.
func NewFIFO(pool *linkpool.Pool) *FIFO {
	sentinel := pool.Allocate()
	f := &FIFO{pool: pool, sentinel: sentinel}
	f.head.StoreRelease(sentinel)
	f.tail.StoreRelease(sentinel)
	return f
}

// Enqueue adds payload to the back of the queue.
func (f *FIFO) Enqueue(payload uintptr) {
	ref := f.pool.Allocate()
	entry := f.pool.Dereference(ref)
	entry.Payload.StoreRelaxed(uint64(payload))
	entry.SingleNext.StoreRelaxed(linkpool.Null)

	for {
		tailRef := f.tail.LoadAcquire()
		tailEntry := f.pool.Dereference(tailRef)
		next := tailEntry.SingleNext.LoadAcquire()
		if next.IsNull() {
			if tailEntry.SingleNext.CompareAndSwapAcqRel(linkpool.Null, ref) {
				// Best-effort tail advance; a lagging tail is still correct,
				// just costs the next caller one extra hop.
				f.tail.CompareAndSwapAcqRel(tailRef, ref)
				return
			}
		} else {
			f.tail.CompareAndSwapAcqRel(tailRef, next)
		}
	}
}

// Dequeue removes and returns the front payload. ok is false if the queue
// was empty.
func (f *FIFO) Dequeue() (payload uintptr, ok bool) {
	for {
		headRef := f.head.LoadAcquire()
		headEntry := f.pool.Dereference(headRef)
		next := headEntry.SingleNext.LoadAcquire()
		if next.IsNull() {
			return 0, false
		}
		tailRef := f.tail.LoadAcquire()
		if headRef == tailRef {
			f.tail.CompareAndSwapAcqRel(tailRef, next)
		}
		nextEntry := f.pool.Dereference(next)
		payload = uintptr(nextEntry.Payload.LoadRelaxed())
		if f.head.CompareAndSwapAcqRel(headRef, next) {
			f.pool.Free(headRef)
			return payload, true
		}
	}
}
