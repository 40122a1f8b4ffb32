// Package telemetry bootstraps OpenTelemetry tracing, metrics and logging for
// a service and hands out the providers through an explicit Context.
//
// Everything is a no-op unless the standard OTEL_* environment variables ask
// for export, or a metrics exporter is configured.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/ekristen/go-flowtel/logger"
	zerologger "github.com/ekristen/go-flowtel/logger/zerolog"
)

type Telemetry struct {
	cfg      *Options
	registry *Registry

	lp *sdklog.LoggerProvider
	mp *sdkmetric.MeterProvider
	tp *sdktrace.TracerProvider

	tracer trace.Tracer
	logger logger.Logger
	// prevLogger is the registry logger New replaced.
	prevLogger logger.Logger

	promServer  *http.Server
	promHandler http.Handler
}

// New creates a Telemetry instance. A nil opts means DefaultOptions.
// Environment variables override opts in both cases.
func New(ctx context.Context, opts *Options) (*Telemetry, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	opts.applyEnvVars()

	return newWithOptions(ctx, opts)
}

func newWithOptions(ctx context.Context, opts *Options) (*Telemetry, error) {
	t := &Telemetry{
		cfg:      opts,
		registry: opts.Registry,
	}
	if t.registry == nil {
		t.registry = DefaultRegistry()
	}

	var res *resource.Resource
	if shouldEnableOTel() || len(opts.metricsExporters()) > 0 {
		res = newResource(opts.ServiceName, opts.ServiceVersion, opts.ResourceAttributes...)
	}

	var err error
	if t.lp, err = newLoggerProvider(ctx, res, opts.BatchExport); err != nil {
		return nil, fmt.Errorf("failed to create logger provider: %w", err)
	}

	if t.tp, err = newTracerProvider(ctx, res, opts.BatchExport); err != nil {
		return nil, fmt.Errorf("failed to create tracer provider: %w", err)
	}

	if t.mp, t.promHandler, err = newMeterProvider(ctx, res, opts); err != nil {
		return nil, fmt.Errorf("failed to create meter provider: %w", err)
	}

	t.logger = newLogger(opts, t.lp)
	t.prevLogger = t.registry.swapLogger(t.logger)
	t.install()

	t.tracer = t.Context().Tracer(opts.ServiceName)

	if opts.PrometheusServer && t.promHandler != nil {
		t.startPrometheusServer()
	}

	return t, nil
}

// install offers the providers to the registry. A provider that was already
// installed by someone else stays; the registry logs the refusal.
func (t *Telemetry) install() {
	if t.tp != nil {
		t.registry.SetTracerProvider(t.tp)
	}
	if t.mp != nil {
		t.registry.SetMeterProvider(t.mp)
	}
	if t.lp != nil {
		t.registry.SetLoggerProvider(t.lp)
	}
}

func newLogger(opts *Options, lp *sdklog.LoggerProvider) logger.Logger {
	if opts.Logger != nil {
		l := opts.Logger
		if u, ok := l.(logger.LoggerOptionsUpdater); ok {
			u.SetOptions(opts.ServiceName, opts.ServiceVersion)
		}
		if u, ok := l.(logger.LoggerProviderUpdater); ok && lp != nil {
			u.UpdateLoggerProvider(lp)
		}
		return l
	}

	var output io.Writer = os.Stdout
	if opts.LogConsoleOutput {
		output = zerologger.NewConsoleWriter(os.Stdout, opts.LogConsoleColor)
	}

	zo := zerologger.Options{
		ServiceName:    opts.ServiceName,
		ServiceVersion: opts.ServiceVersion,
		Output:         output,
		EnableCaller:   true,
	}
	if lp != nil {
		zo.LoggerProvider = lp
	}
	return zerologger.New(zo)
}

func (t *Telemetry) startPrometheusServer() {
	mux := http.NewServeMux()
	mux.Handle(t.cfg.PrometheusPath, t.promHandler)

	t.promServer = &http.Server{
		Addr:              ":" + strconv.Itoa(t.cfg.PrometheusPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srv := t.promServer
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error().Err(err).Str("addr", srv.Addr).Msg("prometheus server failed")
		}
	}()
}

// Shutdown flushes and shuts down every provider, stops the Prometheus server
// and releases the registry slots this instance still owns.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if t.promServer != nil {
		if err := t.promServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown Prometheus server: %w", err))
		}
	}

	if t.lp != nil {
		t.registry.ReleaseLoggerProvider(t.lp)
		errs = append(errs, flushAndShutdown(ctx, "logs", t.lp))
	}
	if t.mp != nil {
		t.registry.ReleaseMeterProvider(t.mp)
		errs = append(errs, flushAndShutdown(ctx, "metrics", t.mp))
	}
	if t.tp != nil {
		t.registry.ReleaseTracerProvider(t.tp)
		errs = append(errs, flushAndShutdown(ctx, "traces", t.tp))
	}

	t.registry.restoreLogger(t.logger, t.prevLogger)

	return errors.Join(errs...)
}

type flushShutdowner interface {
	ForceFlush(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

func flushAndShutdown(ctx context.Context, signal string, p flushShutdowner) error {
	var errs []error
	if err := p.ForceFlush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush %s: %w", signal, err))
	}
	if err := p.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shutdown %s: %w", signal, err))
	}
	return errors.Join(errs...)
}

// Context returns this instance's providers. Disabled signals are no-op
// providers.
func (t *Telemetry) Context() Context {
	var tc Context
	if t.tp != nil {
		tc.TracerProvider = t.tp
	}
	if t.mp != nil {
		tc.MeterProvider = t.mp
	}
	if t.lp != nil {
		tc.LoggerProvider = t.lp
	}
	return tc.withNoopFallbacks()
}

func (t *Telemetry) Logger() logger.Logger {
	return t.logger
}

func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracer
}

// LoggerProvider returns nil if OTel logs are disabled.
func (t *Telemetry) LoggerProvider() *sdklog.LoggerProvider {
	return t.lp
}

// MeterProvider returns nil if no metrics exporter is active.
func (t *Telemetry) MeterProvider() *sdkmetric.MeterProvider {
	return t.mp
}

// TracerProvider returns nil if OTel traces are disabled.
func (t *Telemetry) TracerProvider() *sdktrace.TracerProvider {
	return t.tp
}

// PrometheusHandler returns nil unless the prometheus exporter is active.
// Mount it on your own server when PrometheusServer is off.
func (t *Telemetry) PrometheusHandler() http.Handler {
	return t.promHandler
}

// StartSpan starts a span that must be ended by the caller.
func (t *Telemetry) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name)
}

// StartSpanWithLogger also returns a logger bound to the span's context.
func (t *Telemetry) StartSpanWithLogger(ctx context.Context, name string) (context.Context, trace.Span, logger.Logger) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, span, t.logger.WithContext(ctx)
}
