package scheduler

import "sync/atomic"

// OversubscriptionScope is an RAII-style guard around a blocking engine-level
// wait. Entering it wakes the reserved worker once; that worker runs tasks
// until its own deque, its peers' deques and the global queues are empty,
// then parks again, whether or not the scope is still held. Call Exit when
// the blocking operation completes; a scope must not be reused after Exit.
type OversubscriptionScope struct {
	sched *Scheduler
	exited bool
}

// Exit decrements the oversubscription counter. Nothing reads that counter,
// and Exit does not signal the reserved worker, which parks again on its
// own once it runs out of work.
func (o *OversubscriptionScope) Exit() {
	if o.exited {
		return
	}
	o.exited = true
	atomic.AddInt64(&o.sched.oversubscribed, -1)
}
