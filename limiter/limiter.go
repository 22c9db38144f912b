// Package limiter implements a concurrency-bounded work submitter: Push
// enqueues a callback, and at most maxConcurrency of them ever run at once,
// each receiving a slot index in [0, maxConcurrency) that is unique among
// currently-running callbacks and can be used to index a fixed-size
// per-slot buffer without further synchronization.
//
// Grounded on original_source/OloEngine/.../TaskConcurrencyLimiter.h's
// FTaskConcurrencyLimiter: a bounded free-slot pool plus an unbounded work
// queue, where pushing work or completing a work item both try to drain the
// queue as far as free slots allow before giving up a slot.
package limiter

import (
	"sync/atomic"
	"time"
	"unsafe"

	"code.hybscloud.com/enginecore/corelog"
	"code.hybscloud.com/enginecore/event"
	"code.hybscloud.com/enginecore/scheduler"
	"code.hybscloud.com/enginecore/task"
	"code.hybscloud.com/lfq"
	"code.hybscloud.com/spin"
)

// pendingQueueCapacity bounds how many pushed callbacks may be waiting for
// a free slot at once. lfq.MPMCPtr is a fixed-capacity ring rather than a
// true unbounded list; Push spins past a momentarily full queue exactly
// like scheduler.Launch already does against its own bounded global
// queues, so in practice this is never a hard ceiling on Push, only on how
// much can be queued at any single instant.
const pendingQueueCapacity = 8192

// Func is a unit of work submitted to a Limiter. slot is this callback's
// concurrency slot, valid only for the duration of the call.
type Func func(slot uint32)

// completionEventPool backs every Limiter's lazily-allocated completion
// event, mirroring the source's process-wide TEventPool<ManualReset>.
var completionEventPool = event.NewPool(event.ModeManual, 64)

type workItem struct {
	fn Func
}

// Limiter bounds how many pushed callbacks run concurrently.
type Limiter struct {
	log      *corelog.Logger
	sched    *scheduler.Scheduler
	priority task.Priority

	slots   *lfq.MPMC[uint32]
	pending *lfq.MPMCPtr

	numWorkItems int64 // atomic
	completion   atomic.Pointer[event.Ref]

	closed int32 // atomic bool
}

// New constructs a Limiter that allows at most maxConcurrency callbacks
// pushed via Push to run at the same time, launched onto sched at the given
// priority. maxConcurrency must be at least 1.
func New(sched *scheduler.Scheduler, log *corelog.Logger, maxConcurrency uint32, priority task.Priority) *Limiter {
	if maxConcurrency < 1 {
		panic("limiter: maxConcurrency must be >= 1")
	}

	queueCapacity := int(maxConcurrency)
	if queueCapacity < 2 {
		queueCapacity = 2 // lfq.NewMPMC requires capacity >= 2; extra room goes unused.
	}

	l := &Limiter{
		log:      log,
		sched:    sched,
		priority: priority,
		slots:    lfq.NewMPMC[uint32](queueCapacity),
		pending:  lfq.NewMPMCPtr(pendingQueueCapacity),
	}
	for i := uint32(0); i < maxConcurrency; i++ {
		slot := i
		if err := l.slots.Enqueue(&slot); err != nil {
			panic("limiter: failed to seed concurrency slots")
		}
	}
	return l
}

// Push submits fn for execution once a slot is free. If a slot is free now,
// Push launches a task with PreferenceGlobal; otherwise fn waits in the
// pending queue until a running callback finishes. Push does not wait for
// fn to run, but spins while the pending queue is full.
func (l *Limiter) Push(fn Func) {
	if atomic.LoadInt32(&l.closed) != 0 {
		return
	}

	atomic.AddInt64(&l.numWorkItems, 1)
	item := &workItem{fn: fn}
	var w spin.Wait
	for l.pending.Enqueue(unsafe.Pointer(item)) != nil {
		w.Once()
	}

	if slot, err := l.slots.Dequeue(); err == nil {
		l.processQueue(slot, false)
	}
}

// processQueue drains the pending queue as far as free slots allow,
// launching one task per (slot, item) pair. skipFirstWakeup requests
// PreferenceLocal for the first launch (the caller is already a worker
// completing a prior item, so waking another worker is wasted cost); every
// launch after the first always prefers the global queue, matching the
// source's bWakeUpWorker progression.
func (l *Limiter) processQueue(slot uint32, skipFirstWakeup bool) {
	wake := !skipFirstWakeup
	for {
		raw, err := l.pending.Dequeue()
		if err != nil {
			l.releaseSlot(slot)
			return
		}
		item := (*workItem)(raw)

		pref := scheduler.PreferenceGlobal
		if !wake {
			pref = scheduler.PreferenceLocal
		}

		s := slot
		fn := item.fn
		t := task.New(l.priority, nil, func(*task.CancellationToken) {
			fn(s)
			l.completeWorkItem(s)
		})
		l.sched.Launch(t, pref)
		wake = true

		next, err := l.slots.Dequeue()
		if err != nil {
			return
		}
		slot = next
	}
}

func (l *Limiter) releaseSlot(slot uint32) {
	s := slot
	_ = l.slots.Enqueue(&s)
}

func (l *Limiter) completeWorkItem(slot uint32) {
	if atomic.AddInt64(&l.numWorkItems, -1) == 0 {
		if ref := l.completion.Load(); ref != nil {
			ref.Event().Trigger()
		}
	}
	l.processQueue(slot, true)
}

// Wait blocks until every callback pushed so far has completed.
//
// A wait is satisfied once the internal work counter reaches zero, and is
// never reset afterward: calling Wait again after more work has been
// pushed may return immediately even though that later work is still
// outstanding. This mirrors the source's own documented behavior rather
// than introducing a reset this module's teacher pack never needed.
func (l *Limiter) Wait() {
	l.WaitFor(-1)
}

// WaitFor is Wait bounded by timeout; a negative timeout waits forever.
// It reports whether the work counter reached zero before the timeout.
func (l *Limiter) WaitFor(timeout time.Duration) bool {
	if atomic.LoadInt64(&l.numWorkItems) == 0 {
		return true
	}

	ref := l.completion.Load()
	if ref == nil {
		acquired := completionEventPool.Acquire()
		if l.completion.CompareAndSwap(nil, &acquired) {
			ref = &acquired
		} else {
			acquired.Release()
			ref = l.completion.Load()
		}
	}

	if atomic.LoadInt64(&l.numWorkItems) == 0 {
		return true
	}

	if timeout < 0 {
		ref.Event().Wait()
		return true
	}
	return ref.Event().WaitFor(timeout)
}

// Close blocks until all pushed work completes, rejects further Push calls,
// and returns the completion event (if one was allocated) to its pool.
func (l *Limiter) Close() {
	l.Wait()
	atomic.StoreInt32(&l.closed, 1)
	if ref := l.completion.Load(); ref != nil {
		ref.Release()
	}
}

// CloseAndDrain immediately rejects further Push calls, then hands waiting
// for in-flight work to a detached goroutine so the caller never blocks on
// work it has chosen to abandon. See DESIGN.md Open Question 3.
func (l *Limiter) CloseAndDrain() {
	atomic.StoreInt32(&l.closed, 1)
	go func() {
		l.Wait()
		if ref := l.completion.Load(); ref != nil {
			ref.Release()
		}
	}()
}
