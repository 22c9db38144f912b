// Package linklist implements the pointer-chasing lock-free containers built
// on top of linkpool's indexed-pointer substrate: a LIFO root, a
// sentinel-based FIFO, a single-producer/single-consumer queue, a closable
// MPSC, and a consume-all MPMC stack.
//
// Every container stores one uintptr-sized payload per node directly in the
// node's Payload slot; a caller with a larger payload stores a pointer to it
// and owns that memory itself.
//
// Grounded on the indexed-pointer LIFO/FIFO algorithms described alongside
// OloEngine's LockFreeList (push/pop CAS over a LinkRef head, Michael-Scott
// style sentinel for FIFO).
package linklist

import "code.hybscloud.com/enginecore/linkpool"

// push performs the common Treiber-stack push shared by LIFO and
// consume-all MPMC: CAS head from old to a freshly linked node whose
// SingleNext points at old. ClosableMPSC.Enqueue runs its own copy of this
// loop that also checks for the poison node.
func push(pool *linkpool.Pool, head *linkpool.AtomicLinkRef, payload uintptr) linkpool.LinkRef {
	ref := pool.Allocate()
	entry := pool.Dereference(ref)
	entry.Payload.StoreRelaxed(uint64(payload))
	for {
		old := head.LoadAcquire()
		entry.SingleNext.StoreRelaxed(old)
		if head.CompareAndSwapAcqRel(old, ref) {
			return ref
		}
	}
}

// reverse walks a LinkRef chain linked via SingleNext and relinks it in the
// opposite order, returning the new head. Each node's SingleNext is read
// with an acquire load and then rewritten with a separate release store; it
// is not a single atomic exchange per node.
func reverse(pool *linkpool.Pool, head linkpool.LinkRef) linkpool.LinkRef {
	var prev linkpool.LinkRef
	cur := head
	for !cur.IsNull() {
		entry := pool.Dereference(cur)
		next := entry.SingleNext.LoadAcquire()
		entry.SingleNext.StoreRelease(prev)
		prev = cur
		cur = next
	}
	return prev
}
