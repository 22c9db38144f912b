package linkpool

import "code.hybscloud.com/atomix"

// Entry is one link in the global pool. Entries are cache-line aligned and
// never returned to the OS; only their content is recycled.
//
// DoubleNext and SingleNext are both LinkRef-valued atomics: SingleNext
// chains entries within LIFO/FIFO containers (and, while an entry sits on
// the free list, within a 64-entry bundle); DoubleNext is free for use by
// containers that need a second link, such as the global free-bundle stack
// or a FIFO's independent head/tail chains. Payload is an opaque pointer-
// sized slot, stored as a uintptr so callers can round-trip unsafe.Pointer
// or a plain integer handle through it.
type Entry struct {
	_          pad
	DoubleNext atomicLinkRef
	SingleNext atomicLinkRef
	Payload    atomix.Uintptr
	_          padEntry
}

type pad [64]byte

// padEntry rounds Entry up to a full cache line after its three 8-byte
// atomics, preventing false sharing between adjacent pool entries.
type padEntry [64 - 24]byte

// reset clears an entry before it re-enters circulation, so a thread that
// dereferences a stale index (caught by the ABA counter mismatch) never
// observes a previous tenant's payload.
func (e *Entry) reset() {
	e.DoubleNext.StoreRelaxed(Null)
	e.SingleNext.StoreRelaxed(Null)
	e.Payload.StoreRelaxed(0)
}
