// Package zerolog is the default logger.Logger backend.
package zerolog

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/log"

	"github.com/ekristen/go-flowtel/logger"
)

// Logger wraps zerolog.Logger. The embedded logger stays reachable for
// callers that want the full zerolog API.
type Logger struct {
	zerolog.Logger

	// base is the logger before the OTel hook was attached, kept so the hook
	// can be swapped when the provider changes.
	base           zerolog.Logger
	serviceName    string
	serviceVersion string
}

// Options configures New.
type Options struct {
	ServiceName    string
	ServiceVersion string
	LoggerProvider log.LoggerProvider
	// Output defaults to io.Discard.
	Output       io.Writer
	Level        logger.Level
	EnableCaller bool
}

// New builds a zerolog backed logger.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = io.Discard
	}

	zl := zerolog.New(out).Level(toZerologLevel(opts.Level)).With().Timestamp().Logger()
	if opts.EnableCaller {
		// runtime.Caller -> zerolog -> Event wrapper -> caller
		zl = zl.With().CallerWithSkipFrameCount(3).Logger()
	}

	l := &Logger{
		Logger:         zl,
		base:           zl,
		serviceName:    opts.ServiceName,
		serviceVersion: opts.ServiceVersion,
	}
	l.UpdateLoggerProvider(opts.LoggerProvider)
	return l
}

// Nop returns a logger that drops everything.
func Nop() *Logger {
	zl := zerolog.Nop()
	return &Logger{Logger: zl, base: zl}
}

// Wrap adopts an already configured zerolog.Logger.
func Wrap(zl zerolog.Logger, serviceName, serviceVersion string, provider log.LoggerProvider) *Logger {
	l := &Logger{
		Logger:         zl,
		base:           zl,
		serviceName:    serviceName,
		serviceVersion: serviceVersion,
	}
	l.UpdateLoggerProvider(provider)
	return l
}

// SetOptions implements logger.LoggerOptionsUpdater.
func (l *Logger) SetOptions(serviceName, serviceVersion string) {
	l.serviceName = serviceName
	l.serviceVersion = serviceVersion
}

// UpdateLoggerProvider implements logger.LoggerProviderUpdater. A nil provider
// is ignored.
func (l *Logger) UpdateLoggerProvider(provider log.LoggerProvider) {
	hook := NewOTelHook(l.serviceName, l.serviceVersion, provider)
	if hook == nil {
		return
	}
	l.Logger = l.base.Hook(hook)
}

func (l *Logger) derive(zl zerolog.Logger) *Logger {
	return &Logger{
		Logger:         zl,
		base:           zl,
		serviceName:    l.serviceName,
		serviceVersion: l.serviceVersion,
	}
}

func (l *Logger) With() logger.Context {
	return &Context{parent: l, ctx: l.Logger.With()}
}

func (l *Logger) Trace() logger.Event { return &Event{event: l.Logger.Trace()} }
func (l *Logger) Debug() logger.Event { return &Event{event: l.Logger.Debug()} }
func (l *Logger) Info() logger.Event  { return &Event{event: l.Logger.Info()} }
func (l *Logger) Warn() logger.Event  { return &Event{event: l.Logger.Warn()} }
func (l *Logger) Error() logger.Event { return &Event{event: l.Logger.Error()} }
func (l *Logger) Fatal() logger.Event { return &Event{event: l.Logger.Fatal()} }
func (l *Logger) Panic() logger.Event { return &Event{event: l.Logger.Panic()} }

func (l *Logger) Level() logger.Level {
	return toLoggerLevel(l.Logger.GetLevel())
}

func (l *Logger) SetLevel(level logger.Level) {
	zlevel := toZerologLevel(level)
	l.Logger = l.Logger.Level(zlevel)
	l.base = l.base.Level(zlevel)
}

func (l *Logger) Output(w io.Writer) logger.Logger {
	return l.derive(l.Logger.Output(w))
}

func (l *Logger) WithContext(ctx context.Context) logger.Logger {
	return l.derive(l.Logger.With().Ctx(ctx).Logger())
}

// Context wraps zerolog.Context.
type Context struct {
	parent *Logger
	ctx    zerolog.Context
}

func (c *Context) Logger() logger.Logger {
	return c.parent.derive(c.ctx.Logger())
}

func (c *Context) Str(key, val string) logger.Context {
	c.ctx = c.ctx.Str(key, val)
	return c
}

func (c *Context) Int(key string, val int) logger.Context {
	c.ctx = c.ctx.Int(key, val)
	return c
}

func (c *Context) Bool(key string, val bool) logger.Context {
	c.ctx = c.ctx.Bool(key, val)
	return c
}

func (c *Context) Err(err error) logger.Context {
	c.ctx = c.ctx.Err(err)
	return c
}

func (c *Context) Ctx(ctx context.Context) logger.Context {
	c.ctx = c.ctx.Ctx(ctx)
	return c
}

// Event wraps *zerolog.Event. A nil inner event (level disabled) is handled
// by zerolog itself.
type Event struct {
	event *zerolog.Event
}

func (e *Event) Msg(msg string)                       { e.event.Msg(msg) }
func (e *Event) Msgf(format string, v ...interface{}) { e.event.Msgf(format, v...) }
func (e *Event) Send()                                { e.event.Send() }

func (e *Event) Str(key, val string) logger.Event {
	e.event = e.event.Str(key, val)
	return e
}

func (e *Event) Strs(key string, vals []string) logger.Event {
	e.event = e.event.Strs(key, vals)
	return e
}

func (e *Event) Int(key string, val int) logger.Event {
	e.event = e.event.Int(key, val)
	return e
}

func (e *Event) Int64(key string, val int64) logger.Event {
	e.event = e.event.Int64(key, val)
	return e
}

func (e *Event) Uint64(key string, val uint64) logger.Event {
	e.event = e.event.Uint64(key, val)
	return e
}

func (e *Event) Float64(key string, val float64) logger.Event {
	e.event = e.event.Float64(key, val)
	return e
}

func (e *Event) Bool(key string, val bool) logger.Event {
	e.event = e.event.Bool(key, val)
	return e
}

func (e *Event) Dur(key string, d time.Duration) logger.Event {
	e.event = e.event.Dur(key, d)
	return e
}

func (e *Event) Err(err error) logger.Event {
	e.event = e.event.Err(err)
	return e
}

func (e *Event) Ctx(ctx context.Context) logger.Event {
	e.event = e.event.Ctx(ctx)
	return e
}

var toZerolog = map[logger.Level]zerolog.Level{
	logger.TraceLevel: zerolog.TraceLevel,
	logger.DebugLevel: zerolog.DebugLevel,
	logger.InfoLevel:  zerolog.InfoLevel,
	logger.WarnLevel:  zerolog.WarnLevel,
	logger.ErrorLevel: zerolog.ErrorLevel,
	logger.FatalLevel: zerolog.FatalLevel,
	logger.PanicLevel: zerolog.PanicLevel,
	logger.Disabled:   zerolog.Disabled,
}

func toZerologLevel(level logger.Level) zerolog.Level {
	if zl, ok := toZerolog[level]; ok {
		return zl
	}
	return zerolog.InfoLevel
}

func toLoggerLevel(level zerolog.Level) logger.Level {
	for l, zl := range toZerolog {
		if zl == level {
			return l
		}
	}
	return logger.InfoLevel
}
