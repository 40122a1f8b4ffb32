// Package zap provides a logger.Logger backed by go.uber.org/zap. OTel export
// goes through the otelzap bridge.
package zap

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ekristen/go-flowtel/logger"
)

// zap has no trace level.
const traceLevel = zapcore.DebugLevel - 1

// Logger wraps *zap.Logger.
type Logger struct {
	*zap.Logger

	level          zap.AtomicLevel
	base           zapcore.Core
	fields         []zap.Field
	serviceName    string
	serviceVersion string
	opts           []zap.Option
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
	JSONFormat   bool
}

// New builds a zap backed logger.
func New(opts Options) *Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if opts.JSONFormat {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	out := opts.Output
	if out == nil {
		out = io.Discard
	}

	level := zap.NewAtomicLevelAt(toZapLevel(opts.Level))
	var zapOpts []zap.Option
	if opts.EnableCaller {
		// Event wrapper methods sit between zap and the caller.
		zapOpts = append(zapOpts, zap.AddCaller(), zap.AddCallerSkip(2))
	}
	zapOpts = append(zapOpts, zap.AddStacktrace(zapcore.ErrorLevel))

	return Wrap(zapcore.NewCore(encoder, zapcore.AddSync(out), level), level, opts.ServiceName, opts.ServiceVersion, opts.LoggerProvider, zapOpts...)
}

// Wrap builds a Logger around an existing core. level must be the level
// enabler used by core so SetLevel can adjust it.
func Wrap(core zapcore.Core, level zap.AtomicLevel, serviceName, serviceVersion string, provider log.LoggerProvider, opts ...zap.Option) *Logger {
	l := &Logger{
		Logger:         zap.New(core, opts...),
		level:          level,
		base:           core,
		serviceName:    serviceName,
		serviceVersion: serviceVersion,
		opts:           opts,
	}
	l.UpdateLoggerProvider(provider)
	return l
}

// SetOptions implements logger.LoggerOptionsUpdater.
func (l *Logger) SetOptions(serviceName, serviceVersion string) {
	l.serviceName = serviceName
	l.serviceVersion = serviceVersion
}

// UpdateLoggerProvider implements logger.LoggerProviderUpdater by teeing the
// base core with an otelzap core.
func (l *Logger) UpdateLoggerProvider(provider log.LoggerProvider) {
	if provider == nil {
		return
	}
	otelCore := otelzap.NewCore(l.serviceName,
		otelzap.WithLoggerProvider(provider),
		otelzap.WithVersion(l.serviceVersion),
	)
	l.Logger = zap.New(zapcore.NewTee(l.base, otelCore), l.opts...).With(l.fields...)
}

func (l *Logger) child(fields []zap.Field) *Logger {
	all := append(append([]zap.Field{}, l.fields...), fields...)
	return &Logger{
		Logger:         l.Logger.With(fields...),
		level:          l.level,
		base:           l.base,
		fields:         all,
		serviceName:    l.serviceName,
		serviceVersion: l.serviceVersion,
		opts:           l.opts,
	}
}

func (l *Logger) With() logger.Context {
	return &Context{parent: l}
}

func (l *Logger) event(level zapcore.Level) logger.Event {
	return &Event{logger: l.Logger, level: level}
}

func (l *Logger) Trace() logger.Event { return l.event(traceLevel) }
func (l *Logger) Debug() logger.Event { return l.event(zapcore.DebugLevel) }
func (l *Logger) Info() logger.Event  { return l.event(zapcore.InfoLevel) }
func (l *Logger) Warn() logger.Event  { return l.event(zapcore.WarnLevel) }
func (l *Logger) Error() logger.Event { return l.event(zapcore.ErrorLevel) }
func (l *Logger) Fatal() logger.Event { return l.event(zapcore.FatalLevel) }
func (l *Logger) Panic() logger.Event { return l.event(zapcore.PanicLevel) }

func (l *Logger) Level() logger.Level {
	return toLoggerLevel(l.level.Level())
}

func (l *Logger) SetLevel(level logger.Level) {
	l.level.SetLevel(toZapLevel(level))
}

// Output returns a console logger on w that keeps the level and fields.
func (l *Logger) Output(w io.Writer) logger.Logger {
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(w), l.level)
	out := &Logger{
		Logger:         zap.New(core, l.opts...),
		level:          l.level,
		base:           core,
		serviceName:    l.serviceName,
		serviceVersion: l.serviceVersion,
		opts:           l.opts,
	}
	return out.child(l.fields)
}

func (l *Logger) WithContext(ctx context.Context) logger.Logger {
	return l.child([]zap.Field{contextField(ctx)})
}

// contextField carries ctx to the otelzap core without being encoded by the
// console or JSON encoders.
func contextField(ctx context.Context) zap.Field {
	return zap.Field{Key: "ctx", Type: zapcore.SkipType, Interface: ctx}
}

// Context collects fields for a child logger.
type Context struct {
	parent *Logger
	fields []zap.Field
}

func (c *Context) Logger() logger.Logger { return c.parent.child(c.fields) }

func (c *Context) Str(key, val string) logger.Context {
	c.fields = append(c.fields, zap.String(key, val))
	return c
}

func (c *Context) Int(key string, val int) logger.Context {
	c.fields = append(c.fields, zap.Int(key, val))
	return c
}

func (c *Context) Bool(key string, val bool) logger.Context {
	c.fields = append(c.fields, zap.Bool(key, val))
	return c
}

func (c *Context) Err(err error) logger.Context {
	c.fields = append(c.fields, zap.Error(err))
	return c
}

func (c *Context) Ctx(ctx context.Context) logger.Context {
	c.fields = append(c.fields, contextField(ctx))
	return c
}

// Event buffers fields until Msg.
type Event struct {
	logger *zap.Logger
	level  zapcore.Level
	fields []zap.Field
}

func (e *Event) Msg(msg string) {
	if ce := e.logger.Check(e.level, msg); ce != nil {
		ce.Write(e.fields...)
	}
}

func (e *Event) Msgf(format string, v ...interface{}) {
	if ce := e.logger.Check(e.level, fmt.Sprintf(format, v...)); ce != nil {
		ce.Write(e.fields...)
	}
}

func (e *Event) Send() { e.Msg("") }

func (e *Event) add(f zap.Field) logger.Event {
	e.fields = append(e.fields, f)
	return e
}

func (e *Event) Str(key, val string) logger.Event            { return e.add(zap.String(key, val)) }
func (e *Event) Strs(key string, vals []string) logger.Event { return e.add(zap.Strings(key, vals)) }
func (e *Event) Int(key string, val int) logger.Event        { return e.add(zap.Int(key, val)) }
func (e *Event) Int64(key string, val int64) logger.Event    { return e.add(zap.Int64(key, val)) }
func (e *Event) Uint64(key string, val uint64) logger.Event  { return e.add(zap.Uint64(key, val)) }
func (e *Event) Float64(key string, val float64) logger.Event {
	return e.add(zap.Float64(key, val))
}
func (e *Event) Bool(key string, val bool) logger.Event       { return e.add(zap.Bool(key, val)) }
func (e *Event) Dur(key string, d time.Duration) logger.Event { return e.add(zap.Duration(key, d)) }
func (e *Event) Err(err error) logger.Event                   { return e.add(zap.Error(err)) }
func (e *Event) Ctx(ctx context.Context) logger.Event         { return e.add(contextField(ctx)) }

func toZapLevel(level logger.Level) zapcore.Level {
	switch level {
	case logger.TraceLevel:
		return traceLevel
	case logger.DebugLevel:
		return zapcore.DebugLevel
	case logger.WarnLevel:
		return zapcore.WarnLevel
	case logger.ErrorLevel:
		return zapcore.ErrorLevel
	case logger.FatalLevel:
		return zapcore.FatalLevel
	case logger.PanicLevel:
		return zapcore.PanicLevel
	case logger.Disabled:
		return zapcore.FatalLevel + 1
	default:
		return zapcore.InfoLevel
	}
}

func toLoggerLevel(level zapcore.Level) logger.Level {
	switch {
	case level < zapcore.DebugLevel:
		return logger.TraceLevel
	case level == zapcore.DebugLevel:
		return logger.DebugLevel
	case level == zapcore.InfoLevel:
		return logger.InfoLevel
	case level == zapcore.WarnLevel:
		return logger.WarnLevel
	case level == zapcore.ErrorLevel:
		return logger.ErrorLevel
	case level == zapcore.FatalLevel:
		return logger.FatalLevel
	case level == zapcore.PanicLevel, level == zapcore.DPanicLevel:
		return logger.PanicLevel
	default:
		return logger.Disabled
	}
}
