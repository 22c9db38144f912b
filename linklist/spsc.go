package linklist

import "code.hybscloud.com/enginecore/linkpool"

// SPSC is a single-producer/single-consumer unbounded queue. The producer
// exclusively owns the tail end, the consumer exclusively owns the head end;
// neither side ever needs a compare-and-swap, only a release store to
// publish a new node and an acquire load to observe it. Using this type from
// more than one producer or consumer goroutine is a programmer error, the
// same as misusing a Go channel's single-direction contract.
type SPSC struct {
	pool *linkpool.Pool
	head linkpool.LinkRef // consumer-owned
	tail linkpool.LinkRef // producer-owned
}

// NewSPSC constructs an empty SPSC queue backed by pool.
func NewSPSC(pool *linkpool.Pool) *SPSC {
	sentinel := pool.Allocate()
	return &SPSC{pool: pool, head: sentinel, tail: sentinel}
}

// Enqueue adds payload to the back of the queue. Must only be called by the
// single producer goroutine.
func (q *SPSC) Enqueue(payload uintptr) {
	ref := q.pool.Allocate()
	entry := q.pool.Dereference(ref)
	entry.Payload.StoreRelaxed(uint64(payload))
	entry.SingleNext.StoreRelaxed(linkpool.Null)

	q.pool.Dereference(q.tail).SingleNext.StoreRelease(ref)
	q.tail = ref
}

// Dequeue removes and returns the front payload. Must only be called by the
// single consumer goroutine. The node the consumer was sitting on is
// recycled through the pool's cache rather than leaked.
func (q *SPSC) Dequeue() (payload uintptr, ok bool) {
	next := q.pool.Dereference(q.head).SingleNext.LoadAcquire()
	if next.IsNull() {
		return 0, false
	}
	payload = uintptr(q.pool.Dereference(next).Payload.LoadRelaxed())
	old := q.head
	q.head = next
	q.pool.Free(old)
	return payload, true
}
