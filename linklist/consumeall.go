package linklist

import "code.hybscloud.com/enginecore/linkpool"

// ConsumeAll is a multi-producer, multi-consumer stack whose only consumer
// operation is Drain: atomically swap the head with null and process
// whatever chain was captured. Suited to "drain everything queued since the
// last frame boundary" patterns, where ordering among this frame's entries
// rarely matters but LIFO order happens to be cheapest to produce.
type ConsumeAll struct {
	pool *linkpool.Pool
	head linkpool.AtomicLinkRef
}

// NewConsumeAll constructs an empty ConsumeAll backed by pool.
func NewConsumeAll(pool *linkpool.Pool) *ConsumeAll {
	return &ConsumeAll{pool: pool}
}

// Push adds payload to the stack.
func (c *ConsumeAll) Push(payload uintptr) {
	push(c.pool, &c.head, payload)
}

// Drain atomically detaches the entire current chain and returns its
// payloads. If fifo is true, the result is in push order (oldest first);
// otherwise it is in the cheaper LIFO order (newest first). Returns nil if
// nothing was queued.
func (c *ConsumeAll) Drain(fifo bool) []uintptr {
	var captured linkpool.LinkRef
	for {
		old := c.head.LoadAcquire()
		if old.IsNull() {
			return nil
		}
		if c.head.CompareAndSwapAcqRel(old, linkpool.Null) {
			captured = old
			break
		}
	}

	if fifo {
		captured = reverse(c.pool, captured)
	}

	var out []uintptr
	for cur := captured; !cur.IsNull(); {
		entry := c.pool.Dereference(cur)
		next := entry.SingleNext.LoadAcquire()
		out = append(out, uintptr(entry.Payload.LoadRelaxed()))
		c.pool.Free(cur)
		cur = next
	}
	return out
}
