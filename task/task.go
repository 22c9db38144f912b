// Package task implements the low-level task state machine and cooperative
// cancellation primitives: a task moves from created through scheduled and
// executing to completed, with a best-effort retract back to created
// before it starts running.
package task

import (
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/enginecore/event"
)

// State is one point in a Task's lifecycle.
type State uint32

const (
	StateCreated State = iota
	StateScheduled
	StateExecuting
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateScheduled:
		return "scheduled"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Priority selects which of the scheduler's global queues a task falls back
// to once its launcher's local deque and the steal pool are both exhausted.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityDefault
	PriorityBackground
	NumPriorities = int(PriorityBackground) + 1
)

// Func is the body a Task runs. It receives the CancellationToken the
// launcher attached (nil if none), and is expected to poll
// token.IsCanceled() at its own discretion and return early — cancellation
// here is cooperative only, never forced.
type Func func(token *CancellationToken)

// Task is a unit of work with an explicit state machine. The zero value is
// not usable; construct with New.
//
// A bare event.Event (not drawn from an event.Pool) backs completion
// signaling: unlike the source's pooled OS event handles, a Go Event is just
// an atomic flag plus a parking-lot bucket address, cheap enough per task
// that pooling it would only add indirection.
type Task struct {
	state    atomix.Uint32
	fn       Func
	priority Priority
	token    *CancellationToken
	done     event.Event
}

// New constructs a Task in the created state. token may be nil.
func New(priority Priority, token *CancellationToken, fn Func) *Task {
	t := &Task{priority: priority, token: token, fn: fn, done: *event.New(event.ModeManual)}
	t.state.StoreRelaxed(uint32(StateCreated))
	return t
}

// Priority returns the task's scheduling priority.
func (t *Task) Priority() Priority { return t.priority }

// State returns the task's current lifecycle state.
func (t *Task) State() State { return State(t.state.LoadAcquire()) }

// Schedule transitions created → scheduled. Called by the scheduler when a
// task is first launched. Reports false if the task was not in the created
// state (a programmer error: a Task must not be launched twice
// concurrently).
func (t *Task) Schedule() bool {
	return t.state.CompareAndSwapAcqRel(uint32(StateCreated), uint32(StateScheduled))
}

// Retract attempts to pull the task back out of its queue before a worker
// starts executing it, returning true iff it won the race back to created.
// It may succeed again each time the task is rescheduled. The limiter
// package does not call it.
func (t *Task) Retract() bool {
	return t.state.CompareAndSwapAcqRel(uint32(StateScheduled), uint32(StateCreated))
}

// Run transitions scheduled → executing, runs the task body, then
// transitions to completed and notifies any waiters. Called by a scheduler
// worker that has just dequeued the task. Reports false (without running
// the body) if the task was retracted first.
func (t *Task) Run() bool {
	if !t.state.CompareAndSwapAcqRel(uint32(StateScheduled), uint32(StateExecuting)) {
		return false
	}
	t.fn(t.token)
	t.state.StoreRelease(uint32(StateCompleted))
	t.done.Trigger()
	return true
}

// Wait blocks until the task completes.
func (t *Task) Wait() { t.done.Wait() }

// WaitFor blocks until the task completes or timeout elapses, reporting
// which happened first.
func (t *Task) WaitFor(timeout time.Duration) bool { return t.done.WaitFor(timeout) }
