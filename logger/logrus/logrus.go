// Package logrus provides a logger.Logger backed by sirupsen/logrus.
package logrus

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/log"

	"github.com/ekristen/go-flowtel/logger"
)

// Logger wraps a logrus entry so child loggers keep their fields.
type Logger struct {
	entry *logrus.Entry

	serviceName    string
	serviceVersion string
	disabled       bool
}

// Options configures New.
type Options struct {
	ServiceName    string
	ServiceVersion string
	LoggerProvider log.LoggerProvider
	// Output defaults to io.Discard.
	Output      io.Writer
	Level       logger.Level
	EnableColor bool
	JSONFormat  bool
}

// New builds a logrus backed logger.
func New(opts Options) *Logger {
	lr := logrus.New()
	lr.SetOutput(io.Discard)
	if opts.Output != nil {
		lr.SetOutput(opts.Output)
	}

	if opts.JSONFormat {
		lr.SetFormatter(&logrus.JSONFormatter{})
	} else {
		lr.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   opts.EnableColor,
			DisableColors: !opts.EnableColor,
		})
	}

	return Wrap(lr, opts.Level, opts.ServiceName, opts.ServiceVersion, opts.LoggerProvider)
}

// Wrap adopts an existing logrus.Logger and applies level.
func Wrap(lr *logrus.Logger, level logger.Level, serviceName, serviceVersion string, provider log.LoggerProvider) *Logger {
	l := &Logger{
		entry:          logrus.NewEntry(lr),
		serviceName:    serviceName,
		serviceVersion: serviceVersion,
	}
	l.SetLevel(level)
	l.UpdateLoggerProvider(provider)
	return l
}

// SetOptions implements logger.LoggerOptionsUpdater.
func (l *Logger) SetOptions(serviceName, serviceVersion string) {
	l.serviceName = serviceName
	l.serviceVersion = serviceVersion
}

// UpdateLoggerProvider implements logger.LoggerProviderUpdater.
func (l *Logger) UpdateLoggerProvider(provider log.LoggerProvider) {
	if hook := NewOTelHook(l.serviceName, l.serviceVersion, provider); hook != nil {
		l.entry.Logger.AddHook(hook)
	}
}

func (l *Logger) derive(entry *logrus.Entry) *Logger {
	return &Logger{
		entry:          entry,
		serviceName:    l.serviceName,
		serviceVersion: l.serviceVersion,
		disabled:       l.disabled,
	}
}

func (l *Logger) event(level logrus.Level) logger.Event {
	return &Event{entry: l.entry, level: level, fields: logrus.Fields{}, disabled: l.disabled}
}

func (l *Logger) With() logger.Context { return &Context{parent: l, entry: l.entry} }

func (l *Logger) Trace() logger.Event { return l.event(logrus.TraceLevel) }
func (l *Logger) Debug() logger.Event { return l.event(logrus.DebugLevel) }
func (l *Logger) Info() logger.Event  { return l.event(logrus.InfoLevel) }
func (l *Logger) Warn() logger.Event  { return l.event(logrus.WarnLevel) }
func (l *Logger) Error() logger.Event { return l.event(logrus.ErrorLevel) }
func (l *Logger) Fatal() logger.Event { return l.event(logrus.FatalLevel) }
func (l *Logger) Panic() logger.Event { return l.event(logrus.PanicLevel) }

func (l *Logger) Level() logger.Level {
	if l.disabled {
		return logger.Disabled
	}
	switch l.entry.Logger.GetLevel() {
	case logrus.TraceLevel:
		return logger.TraceLevel
	case logrus.DebugLevel:
		return logger.DebugLevel
	case logrus.WarnLevel:
		return logger.WarnLevel
	case logrus.ErrorLevel:
		return logger.ErrorLevel
	case logrus.FatalLevel:
		return logger.FatalLevel
	case logrus.PanicLevel:
		return logger.PanicLevel
	default:
		return logger.InfoLevel
	}
}

// SetLevel applies to the shared logrus.Logger and therefore to every logger
// derived from it. logrus has no disabled level, so Disabled is tracked here.
func (l *Logger) SetLevel(level logger.Level) {
	l.disabled = level == logger.Disabled
	switch level {
	case logger.TraceLevel:
		l.entry.Logger.SetLevel(logrus.TraceLevel)
	case logger.DebugLevel:
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	case logger.WarnLevel:
		l.entry.Logger.SetLevel(logrus.WarnLevel)
	case logger.ErrorLevel:
		l.entry.Logger.SetLevel(logrus.ErrorLevel)
	case logger.FatalLevel:
		l.entry.Logger.SetLevel(logrus.FatalLevel)
	case logger.PanicLevel, logger.Disabled:
		l.entry.Logger.SetLevel(logrus.PanicLevel)
	default:
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
}

// Output returns a logger on w sharing formatter, level and hooks.
func (l *Logger) Output(w io.Writer) logger.Logger {
	src := l.entry.Logger
	lr := logrus.New()
	lr.SetOutput(w)
	lr.SetFormatter(src.Formatter)
	lr.SetLevel(src.GetLevel())
	lr.SetReportCaller(src.ReportCaller)
	for level, hooks := range src.Hooks {
		lr.Hooks[level] = append(lr.Hooks[level], hooks...)
	}

	entry := logrus.NewEntry(lr).WithFields(l.entry.Data)
	if l.entry.Context != nil {
		entry = entry.WithContext(l.entry.Context)
	}
	return l.derive(entry)
}

func (l *Logger) WithContext(ctx context.Context) logger.Logger {
	return l.derive(l.entry.WithContext(ctx))
}

// Context builds a child entry.
type Context struct {
	parent *Logger
	entry  *logrus.Entry
}

func (c *Context) Logger() logger.Logger { return c.parent.derive(c.entry) }

func (c *Context) Str(key, val string) logger.Context {
	c.entry = c.entry.WithField(key, val)
	return c
}

func (c *Context) Int(key string, val int) logger.Context {
	c.entry = c.entry.WithField(key, val)
	return c
}

func (c *Context) Bool(key string, val bool) logger.Context {
	c.entry = c.entry.WithField(key, val)
	return c
}

func (c *Context) Err(err error) logger.Context {
	c.entry = c.entry.WithError(err)
	return c
}

func (c *Context) Ctx(ctx context.Context) logger.Context {
	c.entry = c.entry.WithContext(ctx)
	return c
}

// Event collects fields and logs on Msg.
type Event struct {
	entry    *logrus.Entry
	level    logrus.Level
	fields   logrus.Fields
	disabled bool
}

func (e *Event) Msg(msg string) {
	if e.disabled {
		return
	}
	e.entry.WithFields(e.fields).Log(e.level, msg)
}

func (e *Event) Msgf(format string, v ...interface{}) {
	if e.disabled {
		return
	}
	e.entry.WithFields(e.fields).Logf(e.level, format, v...)
}

func (e *Event) Send() { e.Msg("") }

func (e *Event) set(key string, val interface{}) logger.Event {
	e.fields[key] = val
	return e
}

func (e *Event) Str(key, val string) logger.Event            { return e.set(key, val) }
func (e *Event) Strs(key string, vals []string) logger.Event { return e.set(key, vals) }
func (e *Event) Int(key string, val int) logger.Event        { return e.set(key, val) }
func (e *Event) Int64(key string, val int64) logger.Event    { return e.set(key, val) }
func (e *Event) Uint64(key string, val uint64) logger.Event  { return e.set(key, val) }
func (e *Event) Float64(key string, val float64) logger.Event {
	return e.set(key, val)
}
func (e *Event) Bool(key string, val bool) logger.Event       { return e.set(key, val) }
func (e *Event) Dur(key string, d time.Duration) logger.Event { return e.set(key, d.String()) }
func (e *Event) Err(err error) logger.Event                   { return e.set(logrus.ErrorKey, err) }

func (e *Event) Ctx(ctx context.Context) logger.Event {
	e.entry = e.entry.WithContext(ctx)
	return e
}
