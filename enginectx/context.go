// Package enginectx provides the single explicit Context handle that owns
// every per-process singleton this module would otherwise reach for as
// package-level global state: the link pool, the event pool, the
// scheduler, and the default frame arena.
//
// A single explicit handle owning all these singletons makes testing
// isolation trivial: each test constructs its own Context. The parking lot
// itself stays a package-level singleton
// (code.hybscloud.com/enginecore/parkinglot): every wait primitive (Event,
// Semaphore, RecursiveMutex, EventCount) already addresses it by the pointer
// identity of its own fields, so a
// Context wrapping it would add indirection without adding isolation.
package enginectx

import (
	"io"

	"code.hybscloud.com/enginecore/corelog"
	"code.hybscloud.com/enginecore/event"
	"code.hybscloud.com/enginecore/framearena"
	"code.hybscloud.com/enginecore/linkpool"
	"code.hybscloud.com/enginecore/scheduler"
	"code.hybscloud.com/enginecore/task"
)

// Context owns one of each long-lived subsystem. Construct one per engine
// instance (or one per test, for isolation) and pass it down rather than
// reaching for package-level state.
type Context struct {
	Log        *corelog.Logger
	Links      *linkpool.Pool
	Events     *event.Pool
	AutoEvents *event.Pool
	Scheduler  *scheduler.Scheduler
	Frame      *framearena.Arena
}

// Option configures a Context at construction.
type Option func(*config)

type config struct {
	logWriter         io.Writer
	logOptions        []corelog.Option
	eventPoolCap      int
	boneCapacity      int
	transformCapacity int
}

// WithLogWriter directs the Context's logger at w instead of the default
// (New's caller-supplied writer).
func WithLogWriter(w io.Writer, opts ...corelog.Option) Option {
	return func(c *config) {
		c.logWriter = w
		c.logOptions = opts
	}
}

// WithEventPoolCapacity overrides the idle-event capacity for both the
// manual-reset and auto-reset event pools. Default is 64, the same capacity
// the limiter package gives its completion-event pool.
func WithEventPoolCapacity(capacity int) Option {
	return func(c *config) { c.eventPoolCap = capacity }
}

// WithFrameArenaCapacity overrides the default frame arena's initial bone
// and transform capacities.
func WithFrameArenaCapacity(boneCapacity, transformCapacity int) Option {
	return func(c *config) {
		c.boneCapacity = boneCapacity
		c.transformCapacity = transformCapacity
	}
}

// New constructs a Context with a fresh link pool, event pools, scheduler,
// and frame arena. The link pool, scheduler and frame arena are wired to
// the same logger; the event pools take none.
func New(w io.Writer, opts ...Option) *Context {
	cfg := config{eventPoolCap: 64}
	for _, opt := range opts {
		opt(&cfg)
	}

	logWriter := w
	if cfg.logWriter != nil {
		logWriter = cfg.logWriter
	}

	log := corelog.New(logWriter, cfg.logOptions...)

	return &Context{
		Log:        log,
		Links:      linkpool.New(log),
		Events:     event.NewPool(event.ModeManual, cfg.eventPoolCap),
		AutoEvents: event.NewPool(event.ModeAuto, cfg.eventPoolCap),
		Scheduler:  scheduler.New(log),
		Frame:      framearena.New(log, cfg.boneCapacity, cfg.transformCapacity),
	}
}

// SpawnTask constructs and launches a task.Task in one call.
func (c *Context) SpawnTask(priority task.Priority, token *task.CancellationToken, fn task.Func) *task.Task {
	t := task.New(priority, token, fn)
	c.Scheduler.Launch(t, scheduler.PreferenceGlobal)
	return t
}

// Close tears down the scheduler's worker pool. The link pool, event
// pools, and frame arena need no explicit teardown; they are ordinary
// garbage-collected Go values once unreferenced.
func (c *Context) Close() {
	c.Scheduler.Close()
}
