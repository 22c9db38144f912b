package linklist

import "code.hybscloud.com/enginecore/linkpool"

// ClosableMPSC is a multi-producer, single-consumer unordered list whose
// only consumer operation is Close: it atomically exchanges the live head
// with a permanent poison node, then drains and reverses the captured chain
// so the consumer callback sees values in the order they were enqueued.
// Any Enqueue observed after Close has exchanged the head fails, handing
// the payload back to its caller rather than silently dropping it.
//
// The poison node is allocated once at construction and never recycled.
type ClosableMPSC struct {
	pool   *linkpool.Pool
	head   linkpool.AtomicLinkRef
	poison linkpool.LinkRef
}

// NewClosableMPSC constructs an open, empty ClosableMPSC backed by pool.
func NewClosableMPSC(pool *linkpool.Pool) *ClosableMPSC {
	poison := pool.Allocate()
	return &ClosableMPSC{pool: pool, poison: poison}
}

// Enqueue adds payload to the list. ok is false if the list is already
// closed, in which case payload is handed back unchanged.
func (c *ClosableMPSC) Enqueue(payload uintptr) (ok bool) {
	ref := c.pool.Allocate()
	entry := c.pool.Dereference(ref)
	entry.Payload.StoreRelaxed(uint64(payload))

	for {
		old := c.head.LoadAcquire()
		if old == c.poison {
			c.pool.Free(ref)
			return false
		}
		entry.SingleNext.StoreRelaxed(old)
		if c.head.CompareAndSwapAcqRel(old, ref) {
			return true
		}
	}
}

// Closed reports whether Close has already run.
func (c *ClosableMPSC) Closed() bool {
	return c.head.LoadAcquire() == c.poison
}

// Close exchanges the head with the poison node, then calls consume once
// per enqueued payload still reachable at that instant, in FIFO (enqueue)
// order. Close is idempotent: calling it again after the list is already
// closed calls consume zero times.
func (c *ClosableMPSC) Close(consume func(payload uintptr)) {
	var captured linkpool.LinkRef
	for {
		old := c.head.LoadAcquire()
		if old == c.poison {
			return
		}
		if c.head.CompareAndSwapAcqRel(old, c.poison) {
			captured = old
			break
		}
	}

	ordered := reverse(c.pool, captured)
	for cur := ordered; !cur.IsNull(); {
		entry := c.pool.Dereference(cur)
		next := entry.SingleNext.LoadAcquire()
		payload := uintptr(entry.Payload.LoadRelaxed())
		consume(payload)
		c.pool.Free(cur)
		cur = next
	}
}
