package linkpool

import "sync"

// bundleSize mirrors LockFreeLinkAllocator_TLSCache::NUM_PER_BUNDLE: the
// number of links moved between a thread cache and the global free stack in
// one operation, amortizing CAS contention on freeTop.
const bundleSize = 64

// cache is one goroutine's bundle of recycled links, built the same way as
// the source's FThreadLocalCache: a partial bundle being drawn down by Pop,
// plus at most one spare full bundle.
//
// The source pins this to a manually-managed TLS slot and never tears it
// down on thread exit, specifically to dodge static-destruction-order races
// during process shutdown. Go has no equivalent hazard: there is no manual
// destructor and the garbage collector never runs mid-operation, so a
// sync.Pool-backed cache gives the same amortization without that
// workaround. See DESIGN.md.
type cache struct {
	partial    LinkRef
	numPartial int
	full       LinkRef
}

var cachePool = sync.Pool{New: func() any { return new(cache) }}

// Allocate pops one link from the pool's per-goroutine bundle cache,
// refilling from the global free stack or from fresh storage as needed.
func (p *Pool) Allocate() LinkRef {
	c := cachePool.Get().(*cache)
	defer cachePool.Put(c)

	if c.partial.IsNull() {
		if !c.full.IsNull() {
			c.partial, c.full = c.full, Null
		} else if bundle := p.popBundle(); !bundle.IsNull() {
			c.partial = bundle
		} else {
			c.partial = p.allocBundle()
		}
		c.numPartial = bundleSize
	}

	result := c.partial
	e := p.Dereference(result)
	c.partial = e.SingleNext.LoadRelaxed()
	c.numPartial--
	e.SingleNext.StoreRelaxed(Null)
	return result
}

// Free returns a link to the per-goroutine bundle cache, pushing a full
// bundle to the global free stack once the cache holds two.
//
// The returned slot's ABA counter is advanced before it re-enters
// circulation: any other LinkRef value still pointing at ref's index (a
// stale read racing this Free) now carries a counter that can never match
// again, so a compare-and-swap against it fails instead of silently
// succeeding against a different tenant.
func (p *Pool) Free(ref LinkRef) {
	c := cachePool.Get().(*cache)
	defer cachePool.Put(c)

	ref = ref.bumped(ref.Index())
	e := p.Dereference(ref)
	e.reset()

	if c.numPartial >= bundleSize {
		if !c.full.IsNull() {
			p.pushBundle(c.full)
		}
		c.full = c.partial
		c.partial = Null
		c.numPartial = 0
	}

	e.SingleNext.StoreRelaxed(c.partial)
	c.partial = ref
	c.numPartial++
}
