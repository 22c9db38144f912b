// Package linkpool provides the indexed-pointer reclamation substrate shared
// by every lock-free container in this module: a pre-allocated pool of
// 64-bit indexed pointers (26-bit index + 38-bit ABA counter) together with
// a per-goroutine bundle cache that amortizes contention on the pool's
// global free list.
//
// Ported from Unreal Engine's lock-free link allocator (by way of
// OloEngine's LockFreeList.h/.cpp), adapted to idiomatic Go.
package linkpool

import "code.hybscloud.com/atomix"

// LinkRef is a 64-bit indexed pointer: a 26-bit index into the global link
// pool packed with a 38-bit ABA counter. The zero value is Null.
//
// Once a LinkRef is allocated, the counter for its index advances on every
// reuse of that slot, so a concurrent observer holding a stale LinkRef whose
// index now refers to a different tenant fails its compare-and-swap because
// the counter no longer matches.
type LinkRef uint64

const (
	indexBits   = 26
	counterBits = 64 - indexBits
	indexMask   = (uint64(1) << indexBits) - 1

	// maxIndex is the hard cap on addressable links (25-bit space, ~33M
	// links), leaving headroom within the 26-bit index field per spec.
	maxIndex = 1 << 25
)

// Null is the reserved "no link" value. Index 0 is never allocated.
const Null LinkRef = 0

// encode packs an index and ABA counter into a LinkRef.
func encode(index uint32, counter uint64) LinkRef {
	return LinkRef((counter << indexBits) | uint64(index)&indexMask)
}

// Index returns the pool index encoded in ref, with the ABA counter stripped.
func (ref LinkRef) Index() uint32 {
	return uint32(uint64(ref) & indexMask)
}

// Counter returns the ABA counter encoded in ref.
func (ref LinkRef) Counter() uint64 {
	return uint64(ref) >> indexBits
}

// IsNull reports whether ref is the reserved null value.
func (ref LinkRef) IsNull() bool {
	return ref == Null
}

// bumped returns ref's index re-packed with the counter advanced by one,
// wrapping within the 38-bit counter space.
func (ref LinkRef) bumped(index uint32) LinkRef {
	next := (ref.Counter() + 1) & ((uint64(1) << counterBits) - 1)
	return encode(index, next)
}

// AtomicLinkRef is a LinkRef stored for lock-free, ABA-safe compare-and-swap.
// Exported so containers built on top of Pool (linklist) can chain Entry.SingleNext/DoubleNext themselves.
type AtomicLinkRef struct {
	v atomix.Uint64
}

func (a *AtomicLinkRef) LoadAcquire() LinkRef { return LinkRef(a.v.LoadAcquire()) }
func (a *AtomicLinkRef) LoadRelaxed() LinkRef { return LinkRef(a.v.LoadRelaxed()) }
func (a *AtomicLinkRef) StoreRelaxed(ref LinkRef) {
	a.v.StoreRelaxed(uint64(ref))
}
func (a *AtomicLinkRef) StoreRelease(ref LinkRef) {
	a.v.StoreRelease(uint64(ref))
}
func (a *AtomicLinkRef) CompareAndSwapAcqRel(old, new LinkRef) bool {
	return a.v.CompareAndSwapAcqRel(uint64(old), uint64(new))
}
func (a *AtomicLinkRef) CompareAndSwapRelaxed(old, new LinkRef) bool {
	return a.v.CompareAndSwapRelaxed(uint64(old), uint64(new))
}

// atomicLinkRef is kept as the name used internally by Pool's own free-list
// bookkeeping, so its field declarations below read the same as before the
// export.
type atomicLinkRef = AtomicLinkRef
