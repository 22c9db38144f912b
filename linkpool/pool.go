package linkpool

import (
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/enginecore/corelog"
	"code.hybscloud.com/spin"
)

// blockSize is the number of entries allocated per growth step. Existing
// blocks are never moved, so a LinkRef's underlying *Entry address is stable
// for the pool's entire lifetime.
const blockSize = 16384

// Pool is the global link pool backing every indexed-pointer container in
// this module. Storage grows in fixed-size blocks up to maxIndex entries;
// entries are never returned to the OS, only recycled through the free list.
//
// A Pool with a nil *corelog.Logger silently drops fatal-exhaustion
// diagnostics instead of logging them; New stores whichever logger it is
// given, nil included.
type Pool struct {
	mu     sync.Mutex
	blocks [][]Entry // grown under mu, read without it (append-only)

	bump atomix.Uint64 // next never-before-issued index

	freeTop atomicLinkRef // LIFO stack of free bundles, chained via DoubleNext

	log *corelog.Logger
}

// New creates an empty Pool. log receives a Fatal call if the pool's index
// space is ever exhausted; pass nil to discard that diagnostic (tests only).
func New(log *corelog.Logger) *Pool {
	p := &Pool{log: log}
	// index 0 is reserved for Null: burn it immediately.
	p.bump.StoreRelaxed(1)
	return p
}

// entry returns the Entry for a pool index, growing storage if necessary.
func (p *Pool) entry(index uint32) *Entry {
	block := int(index / blockSize)
	offset := int(index % blockSize)

	p.mu.Lock()
	for block >= len(p.blocks) {
		p.blocks = append(p.blocks, make([]Entry, blockSize))
	}
	e := &p.blocks[block][offset]
	p.mu.Unlock()
	return e
}

// Dereference returns the Entry a LinkRef points to. The caller is
// responsible for not dereferencing a ref after it has been freed and
// possibly reused; containers built on Pool guard this with the ABA counter.
func (p *Pool) Dereference(ref LinkRef) *Entry {
	return p.entry(ref.Index())
}

// allocRaw reserves a brand-new index from the bump counter, failing fatally
// once the 25-bit index space (maxIndex) is exhausted.
func (p *Pool) allocRaw() uint32 {
	next := p.bump.Add(1) - 1
	if next >= maxIndex {
		if p.log != nil {
			p.log.Fatal("linkpool", func(b *corelog.Builder) {
				b.Uint64("allocated", next)
			}, "lock-free links exhausted")
		}
		// log == nil only in tests that intentionally exercise this path
		// without an abort hook; panic keeps the zero value unreachable.
		panic("linkpool: link pool exhausted")
	}
	return uint32(next)
}

// pushBundle atomically pushes a chain of bundleSize links (already linked
// via their SingleNext fields, with head as the first) onto the global free
// stack, using head's DoubleNext as the inter-bundle link.
func (p *Pool) pushBundle(head LinkRef) {
	var w spin.Wait
	for {
		top := p.freeTop.LoadAcquire()
		headEntry := p.Dereference(head)
		headEntry.DoubleNext.StoreRelaxed(top)
		if p.freeTop.CompareAndSwapAcqRel(top, head) {
			return
		}
		w.Once()
	}
}

// popBundle pops one bundle from the global free stack, returning Null if
// the stack is empty.
func (p *Pool) popBundle() LinkRef {
	var w spin.Wait
	for {
		top := p.freeTop.LoadAcquire()
		if top.IsNull() {
			return Null
		}
		next := p.Dereference(top).DoubleNext.LoadRelaxed()
		if p.freeTop.CompareAndSwapAcqRel(top, next) {
			return top
		}
		w.Once()
	}
}

// allocBundle builds a fresh chain of bundleSize never-before-issued links,
// chained head-to-tail via SingleNext, and returns the head.
func (p *Pool) allocBundle() LinkRef {
	var head LinkRef
	for i := 0; i < bundleSize; i++ {
		index := p.allocRaw()
		e := p.entry(index)
		e.reset()
		ref := encode(index, 0)
		e.SingleNext.StoreRelaxed(head)
		head = ref
	}
	return head
}
