// Package scheduler implements a worker pool: one worker per logical core
// (minus one) holding a local work-stealing deque, backed by a lock-free
// global queue per task.Priority, with an oversubscription mechanism for
// known-blocking operations.
package scheduler

import (
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"

	"code.hybscloud.com/enginecore/corelog"
	"code.hybscloud.com/enginecore/event"
	"code.hybscloud.com/enginecore/eventcount"
	"code.hybscloud.com/enginecore/task"
	"code.hybscloud.com/lfq"
	"code.hybscloud.com/spin"
)

const globalQueueCapacity = 4096

// QueuePreference selects where Launch enqueues a task.
type QueuePreference int

const (
	// PreferenceLocal enqueues on the calling goroutine's own worker deque,
	// if the caller is running inside a worker; otherwise it behaves like
	// PreferenceGlobal.
	PreferenceLocal QueuePreference = iota
	// PreferenceGlobal always enqueues on the task's priority-ranked global
	// queue.
	PreferenceGlobal
)

// Scheduler owns a fixed worker pool, one global MPMC queue per
// task.Priority, and the idle-worker park/wake signal.
type Scheduler struct {
	log     *corelog.Logger
	workers []*worker
	global  [task.NumPriorities]*lfq.MPMC[*task.Task]
	idle    eventcount.EventCount

	oversubscribed   int64 // atomic: number of active OversubscriptionScopes
	reserveSemaphore *event.Semaphore
	reserveWorkers   []*worker

	closing int32 // atomic bool, 1 once Close has been called
	wg      sync.WaitGroup
}

// New constructs a Scheduler with one worker per logical core minus one
// (floor 1), plus one reserved worker held back for oversubscription, and
// starts every worker's loop.
func New(log *corelog.Logger) *Scheduler {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}

	s := &Scheduler{log: log}
	for p := 0; p < task.NumPriorities; p++ {
		s.global[p] = lfq.NewMPMC[*task.Task](globalQueueCapacity)
	}
	s.reserveSemaphore = event.NewSemaphore(0)

	s.workers = make([]*worker, n)
	for i := range s.workers {
		s.workers[i] = newWorker(s, i)
	}
	for _, w := range s.workers {
		peers := s.workers
		s.wg.Add(1)
		go w.loop(peers)
	}

	const reserveCount = 1
	s.reserveWorkers = make([]*worker, reserveCount)
	for i := range s.reserveWorkers {
		s.reserveWorkers[i] = newWorker(s, n+i)
		s.wg.Add(1)
		go s.reserveWorkers[i].reserveLoop(s.reserveSemaphore)
	}

	return s
}

// Launch transitions t from created to scheduled and enqueues it per pref,
// then notifies the idle event-count, which wakes every parked worker. It is a programmer error to Launch a task
// that is not currently in the created state.
func (s *Scheduler) Launch(t *task.Task, pref QueuePreference) {
	if !t.Schedule() {
		return
	}

	if pref == PreferenceLocal {
		if w := currentWorker(); w != nil {
			w.local.pushBottom(t)
			s.idle.Notify()
			return
		}
	}

	q := s.global[t.Priority()]
	var w spin.Wait
	for {
		if err := q.Enqueue(&t); err == nil {
			break
		}
		// Global queue momentarily full: spin. Bounded global queues are
		// sized generously (globalQueueCapacity) precisely so this should
		// never sustain contention in practice.
		w.Once()
	}
	s.idle.Notify()
}

// EnterOversubscription increments the oversubscription counter and wakes
// one reserved worker, returning a scope whose Exit call decrements the
// counter. Exit does not signal the reserved worker.
func (s *Scheduler) EnterOversubscription() *OversubscriptionScope {
	atomic.AddInt64(&s.oversubscribed, 1)
	s.reserveSemaphore.Release(1)
	return &OversubscriptionScope{sched: s}
}

// Close stops accepting new idle-wake cycles and blocks until every worker
// goroutine observes shutdown and returns. Workers finish any task already
// in hand before exiting.
func (s *Scheduler) Close() {
	atomic.StoreInt32(&s.closing, 1)
	s.idle.Notify()
	s.reserveSemaphore.Release(int64(len(s.reserveWorkers)))
	s.wg.Wait()
}

func (s *Scheduler) isClosing() bool {
	return atomic.LoadInt32(&s.closing) != 0
}

func (s *Scheduler) popGlobal() *task.Task {
	for p := 0; p < task.NumPriorities; p++ {
		if t, err := s.global[p].Dequeue(); err == nil {
			return t
		}
	}
	return nil
}

// worker is one scheduler-owned goroutine: its own local deque, checked
// first; then a random peer's deque (stolen from the opposite end); then
// the global per-priority queues; then it parks on the scheduler's idle
// event-count.
type worker struct {
	id    int
	sched *Scheduler
	local *deque
	rng   *rand.Rand
}

func newWorker(s *Scheduler, id int) *worker {
	return &worker{id: id, sched: s, local: &deque{}, rng: rand.New(rand.NewSource(int64(id) + 1))}
}

func (w *worker) loop(peers []*worker) {
	defer w.sched.wg.Done()
	setCurrentWorker(w)
	defer clearCurrentWorker()

	peerDeques := make([]*deque, len(peers))
	for i, p := range peers {
		peerDeques[i] = p.local
	}

	for {
		if t := w.next(peerDeques); t != nil {
			t.Run()
			continue
		}
		if w.sched.isClosing() {
			return
		}
		token := w.sched.idle.PrepareWait()
		if t := w.next(peerDeques); t != nil {
			t.Run()
			continue
		}
		if w.sched.isClosing() {
			return
		}
		w.sched.idle.Wait(token)
	}
}

// reserveLoop is an oversubscription worker: it stays parked on sem until
// EnterOversubscription wakes it, then behaves exactly like a regular
// worker for as long as there is work, returning to the parked state once
// its local deque, the steal pool, and the global queues all empty out.
func (w *worker) reserveLoop(sem *event.Semaphore) {
	defer w.sched.wg.Done()
	for {
		sem.Acquire()
		if w.sched.isClosing() {
			return
		}
		setCurrentWorker(w)
		peers := make([]*deque, len(w.sched.workers))
		for i, p := range w.sched.workers {
			peers[i] = p.local
		}
		for {
			t := w.next(peers)
			if t == nil {
				break
			}
			t.Run()
		}
		clearCurrentWorker()
	}
}

func (w *worker) next(peers []*deque) *task.Task {
	if t := w.local.popBottom(); t != nil {
		return t
	}
	if t := stealFromRandomPeer(peers, w.id, w.rng); t != nil {
		return t
	}
	return w.sched.popGlobal()
}

var (
	currentWorkerMu sync.Mutex
	currentWorkers  = map[uint64]*worker{}
)

// currentWorker/setCurrentWorker/clearCurrentWorker identify "the worker
// goroutine currently running this call" for Launch's PreferenceLocal path,
// the same goroutine-keyed-registry substitute for thread_local used by
// task.CancellationTokenScope.
func currentWorker() *worker {
	currentWorkerMu.Lock()
	w := currentWorkers[goroutineID()]
	currentWorkerMu.Unlock()
	return w
}

func setCurrentWorker(w *worker) {
	currentWorkerMu.Lock()
	currentWorkers[goroutineID()] = w
	currentWorkerMu.Unlock()
}

func clearCurrentWorker() {
	currentWorkerMu.Lock()
	delete(currentWorkers, goroutineID())
	currentWorkerMu.Unlock()
}
