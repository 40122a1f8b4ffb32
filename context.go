package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	lognoop "go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Context carries the providers instrumented code should use. Passing it
// explicitly avoids depending on the process globals, which matters in tests
// that run several harnesses one after another.
//
// A nil provider behaves as a no-op provider.
type Context struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	LoggerProvider log.LoggerProvider
}

// GlobalContext snapshots the current otel globals.
func GlobalContext() Context {
	return Context{
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
		LoggerProvider: global.GetLoggerProvider(),
	}
}

func (c Context) withNoopFallbacks() Context {
	if c.TracerProvider == nil {
		c.TracerProvider = tracenoop.NewTracerProvider()
	}
	if c.MeterProvider == nil {
		c.MeterProvider = metricnoop.NewMeterProvider()
	}
	if c.LoggerProvider == nil {
		c.LoggerProvider = lognoop.NewLoggerProvider()
	}
	return c
}

// Tracer returns a named tracer from the context's tracer provider.
func (c Context) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return c.withNoopFallbacks().TracerProvider.Tracer(name, opts...)
}

// Meter returns a named meter from the context's meter provider.
func (c Context) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return c.withNoopFallbacks().MeterProvider.Meter(name, opts...)
}

// Logger returns a named OTel logger from the context's logger provider.
func (c Context) Logger(name string, opts ...log.LoggerOption) log.Logger {
	return c.withNoopFallbacks().LoggerProvider.Logger(name, opts...)
}

type contextKey struct{}

// WithContext returns a copy of ctx carrying tc.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext returns the Context stored by WithContext, or the current otel
// globals when there is none.
func FromContext(ctx context.Context) Context {
	if ctx != nil {
		if tc, ok := ctx.Value(contextKey{}).(Context); ok {
			return tc
		}
	}
	return GlobalContext()
}
