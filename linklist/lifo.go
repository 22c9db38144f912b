package linklist

import "code.hybscloud.com/enginecore/linkpool"

// LIFO is a lock-free last-in-first-out stack: push CASes head to a new
// node whose SingleNext is the old head; pop CASes head to head's
// SingleNext. ABA-safe because head is a LinkRef (index + counter), never a
// raw pointer.
type LIFO struct {
	pool *linkpool.Pool
	head linkpool.AtomicLinkRef
}

// NewLIFO constructs an empty LIFO backed by pool.
func NewLIFO(pool *linkpool.Pool) *LIFO {
	return &LIFO{pool: pool}
}

// Push adds payload to the top of the stack.
func (l *LIFO) Push(payload uintptr) {
	push(l.pool, &l.head, payload)
}

// Pop removes and returns the most recently pushed payload. ok is false if
// the stack was empty.
func (l *LIFO) Pop() (payload uintptr, ok bool) {
	for {
		old := l.head.LoadAcquire()
		if old.IsNull() {
			return 0, false
		}
		entry := l.pool.Dereference(old)
		next := entry.SingleNext.LoadAcquire()
		if l.head.CompareAndSwapAcqRel(old, next) {
			payload = uintptr(entry.Payload.LoadRelaxed())
			l.pool.Free(old)
			return payload, true
		}
	}
}
