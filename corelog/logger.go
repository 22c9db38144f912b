package corelog

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Builder is the fluent field-setting handle returned by each level method,
// matching logiface's Builder[E] API directly (Str, Int, Err, Bool, ... then
// a terminal Log/Logf/LogFunc call).
type Builder = logiface.Builder[*event]

// Logger is the structured-logging hook: one method per level, each
// yielding a Builder for optional structured fields.
//
// Fatal additionally invokes the configured abort hook after logging:
// conditions that reach Fatal must log a diagnostic and then abort the
// process rather than return a Go error.
type Logger struct {
	l     *logiface.Logger[*event]
	abort func()
}

// Option configures a Logger.
type Option func(*config)

type config struct {
	level logiface.Level
	abort func()
}

// WithLevel sets the minimum enabled level. Default is LevelInformational.
func WithLevel(level logiface.Level) Option {
	return func(c *config) { c.level = level }
}

// WithAbortHook overrides the function Fatal calls after logging.
// Default is os.Exit(1). Tests typically substitute a panic so the call can
// be recovered instead of terminating the test binary.
func WithAbortHook(abort func()) Option {
	return func(c *config) { c.abort = abort }
}

// New builds a Logger writing to w as newline-delimited JSON via zerolog.
func New(w io.Writer, opts ...Option) *Logger {
	c := config{level: logiface.LevelInformational, abort: func() { os.Exit(1) }}
	for _, o := range opts {
		o(&c)
	}

	zl := zerolog.New(w).With().Timestamp().Logger()

	l := logiface.New[*event](
		logiface.WithLevel[*event](c.level),
		logiface.WithEventFactory[*event](logiface.NewEventFactoryFunc(func(level logiface.Level) *event {
			e := eventPool.Get().(*event)
			e.lvl = level
			e.ev = zl.WithLevel(zerologLevel(level))
			e.msg = ""
			return e
		})),
		logiface.WithEventReleaser[*event](logiface.NewEventReleaserFunc(func(e *event) {
			e.ev = nil
			eventPool.Put(e)
		})),
		logiface.WithWriter[*event](logiface.NewWriterFunc(func(e *event) error {
			if e.msg != "" {
				e.ev.Msg(e.msg)
			} else {
				e.ev.Send()
			}
			return nil
		})),
	)

	return &Logger{l: l, abort: c.abort}
}

// Trace returns a Builder at the Trace level.
func (lg *Logger) Trace() *Builder { return lg.l.Trace() }

// Debug returns a Builder at the Debug level.
func (lg *Logger) Debug() *Builder { return lg.l.Debug() }

// Info returns a Builder at the Informational level.
func (lg *Logger) Info() *Builder { return lg.l.Info() }

// Warn returns a Builder at the Warning level.
func (lg *Logger) Warn() *Builder { return lg.l.Warning() }

// Error returns a Builder at the Error level.
func (lg *Logger) Error() *Builder { return lg.l.Err() }

// Fatal logs msg (with the given field-setting calls) at Alert level,
// identifying the subsystem, the invariant violated, and any counters the
// caller supplies as fields, then invokes the abort hook. It never returns.
//
// Example:
//
//	log.Fatal("linkpool", func(b *corelog.Builder) {
//	    b.Str("invariant", "pool exhausted").Uint64("allocated", n)
//	}, "lock-free links exhausted")
func (lg *Logger) Fatal(subsystem string, fields func(*Builder), msg string) {
	b := lg.l.Alert().Str("subsystem", subsystem)
	if fields != nil {
		fields(b)
	}
	b.Log(msg)
	lg.abort()
}

// Debugf logs an OperationFailed-class non-error at Debug level: a
// recoverable failure that doesn't warrant a full error-level entry still
// gets a debug-level trace.
func (lg *Logger) Debugf(subsystem, msg string) {
	lg.l.Debug().Str("subsystem", subsystem).Log(msg)
}
