package telemetry

import (
	"context"
	"net/http"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/ekristen/go-flowtel/logger"
)

// ITelemetry is implemented by *Telemetry.
type ITelemetry interface {
	Shutdown(ctx context.Context) error

	// Context returns the providers to pass to instrumented code.
	Context() Context

	Logger() logger.Logger
	Tracer() trace.Tracer

	// Provider accessors return nil for disabled signals.
	LoggerProvider() *sdklog.LoggerProvider
	MeterProvider() *sdkmetric.MeterProvider
	TracerProvider() *sdktrace.TracerProvider

	PrometheusHandler() http.Handler

	StartSpan(ctx context.Context, name string) (context.Context, trace.Span)
	StartSpanWithLogger(ctx context.Context, name string) (context.Context, trace.Span, logger.Logger)
}

var _ ITelemetry = (*Telemetry)(nil)
