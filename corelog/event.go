// Package corelog provides the structured-logging hook consumed by every
// other package in this module: one method per level, each taking a
// message.
//
// It layers github.com/joeycumines/logiface's fluent builder over a
// github.com/rs/zerolog writer, mirroring how the hayabusa-cloud ecosystem
// and the logiface/zerolog adapter package pair a facade with a concrete
// backend rather than logging directly against one library.
package corelog

import (
	"encoding/base64"
	"sync"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// event adapts logiface.Event to a github.com/rs/zerolog.Event.
//
// zerolog.Event is write-once and self-finalizing (Msg/Send), so the event
// buffers its message and is only handed to zerolog at Writer.Write time.
type event struct {
	logiface.UnimplementedEvent
	lvl logiface.Level
	ev  *zerolog.Event
	msg string
}

var eventPool = sync.Pool{New: func() any { return new(event) }}

func (e *event) Level() logiface.Level { return e.lvl }

func (e *event) AddField(key string, val any) { e.ev.Interface(key, val) }

func (e *event) AddMessage(msg string) bool { e.msg = msg; return true }

func (e *event) AddError(err error) bool { e.ev.Err(err); return true }

func (e *event) AddString(key string, val string) bool { e.ev.Str(key, val); return true }

func (e *event) AddInt(key string, val int) bool { e.ev.Int(key, val); return true }

func (e *event) AddInt64(key string, val int64) bool { e.ev.Int64(key, val); return true }

func (e *event) AddUint64(key string, val uint64) bool { e.ev.Uint64(key, val); return true }

func (e *event) AddBool(key string, val bool) bool { e.ev.Bool(key, val); return true }

func (e *event) AddFloat32(key string, val float32) bool { e.ev.Float32(key, val); return true }

func (e *event) AddFloat64(key string, val float64) bool { e.ev.Float64(key, val); return true }

func (e *event) AddTime(key string, val time.Time) bool { e.ev.Time(key, val); return true }

func (e *event) AddDuration(key string, val time.Duration) bool { e.ev.Dur(key, val); return true }

func (e *event) AddBase64Bytes(key string, val []byte, enc *base64.Encoding) bool {
	e.ev.Str(key, enc.EncodeToString(val))
	return true
}

// zerologLevel maps a logiface.Level to its nearest zerolog.Level.
//
// logiface orders levels by syslog severity (Emergency is the most severe,
// numerically lowest); zerolog orders the other way, so this is not a
// simple linear remap.
func zerologLevel(lvl logiface.Level) zerolog.Level {
	switch {
	case lvl <= logiface.LevelEmergency:
		return zerolog.PanicLevel
	case lvl <= logiface.LevelCritical:
		return zerolog.FatalLevel
	case lvl <= logiface.LevelError:
		return zerolog.ErrorLevel
	case lvl == logiface.LevelWarning:
		return zerolog.WarnLevel
	case lvl <= logiface.LevelInformational:
		return zerolog.InfoLevel
	case lvl == logiface.LevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}
