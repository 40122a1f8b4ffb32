// Package logger defines the structured logging surface shared by flowtel,
// its test harness and the flowctl CLI. Backends live in the sub-packages.
package logger

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel/log"
)

// Logger is a chained, zerolog-shaped structured logger.
type Logger interface {
	// With returns a builder for a child logger carrying extra fields.
	With() Context

	Trace() Event
	Debug() Event
	Info() Event
	Warn() Event
	Error() Event
	// Fatal logs and exits the process.
	Fatal() Event
	// Panic logs and panics.
	Panic() Event

	// Level returns the current minimum level.
	Level() Level
	// SetLevel changes the minimum level in place.
	SetLevel(level Level)

	// Output returns a copy of the logger writing to w.
	Output(w io.Writer) Logger

	// WithContext returns a logger bound to ctx so span identifiers travel
	// with every event.
	WithContext(ctx context.Context) Logger
}

// Context accumulates fields for a child logger.
type Context interface {
	Logger() Logger

	Str(key, val string) Context
	Int(key string, val int) Context
	Bool(key string, val bool) Context
	Err(error) Context
	Ctx(context.Context) Context
}

// Event is a single pending log line. Nothing is written until Msg, Msgf or
// Send is called.
type Event interface {
	Msg(msg string)
	Msgf(format string, v ...interface{})
	Send()

	Str(key, val string) Event
	Strs(key string, vals []string) Event
	Int(key string, val int) Event
	Int64(key string, val int64) Event
	Uint64(key string, val uint64) Event
	Float64(key string, val float64) Event
	Bool(key string, val bool) Event
	Dur(key string, d time.Duration) Event
	Err(error) Event
	Ctx(context.Context) Event
}

// Level is a log severity. The numeric values follow zerolog.
type Level int8

const (
	TraceLevel Level = iota - 2
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
	PanicLevel
	Disabled
)

var levelNames = map[Level]string{
	TraceLevel: "trace",
	DebugLevel: "debug",
	InfoLevel:  "info",
	WarnLevel:  "warn",
	ErrorLevel: "error",
	FatalLevel: "fatal",
	PanicLevel: "panic",
	Disabled:   "disabled",
}

// String returns the lower-case level name.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "info"
}

// ParseLevel maps a level name to a Level. Unknown names yield InfoLevel and
// false.
func ParseLevel(name string) (Level, bool) {
	for level, n := range levelNames {
		if n == name {
			return level, true
		}
	}
	if name == "warning" {
		return WarnLevel, true
	}
	return InfoLevel, false
}

// LoggerProviderUpdater is implemented by backends that can start forwarding
// records to an OTel logger provider after construction.
type LoggerProviderUpdater interface {
	UpdateLoggerProvider(provider log.LoggerProvider)
}

// LoggerOptionsUpdater is implemented by backends that accept the service
// identity after construction, so callers only state it once in
// telemetry.Options.
type LoggerOptionsUpdater interface {
	SetOptions(serviceName, serviceVersion string)
}
