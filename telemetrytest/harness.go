// Package telemetrytest provides an in-memory OpenTelemetry harness for
// asserting on the spans, metrics and logs produced by instrumented code.
//
// A Harness installs its own tracer, meter and logger providers into the
// process registry. Installing over an occupied slot is refused by the
// registry, so the harness resets each slot first. Harnesses share process
// state and must not be used concurrently.
//
//	func TestTask(t *testing.T) {
//		h := telemetrytest.NewT(t)
//		runTask(h.Context())
//		h.AssertSpanAttribute(t, "task-run", "task_id", "abc123")
//	}
package telemetrytest

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	telemetry "github.com/ekristen/go-flowtel"
	"github.com/ekristen/go-flowtel/logger"
	zerologger "github.com/ekristen/go-flowtel/logger/zerolog"
)

type config struct {
	resource         *resource.Resource
	attributes       []attribute.KeyValue
	tracerOptions    []sdktrace.TracerProviderOption
	meterOptions     []sdkmetric.Option
	readers          []sdkmetric.Reader
	prometheus       bool
	inFlightInterval time.Duration
	logger           logger.Logger
	registry         *telemetry.Registry
}

// Option configures a Harness.
type Option func(*config)

// WithResource replaces the default SDK resource.
func WithResource(res *resource.Resource) Option {
	return func(c *config) { c.resource = res }
}

// WithResourceAttributes adds attributes to the resource.
func WithResourceAttributes(attrs ...attribute.KeyValue) Option {
	return func(c *config) { c.attributes = append(c.attributes, attrs...) }
}

// WithTracerProviderOptions passes options through to the tracer provider.
func WithTracerProviderOptions(opts ...sdktrace.TracerProviderOption) Option {
	return func(c *config) { c.tracerOptions = append(c.tracerOptions, opts...) }
}

// WithMeterProviderOptions passes options through to the meter provider.
func WithMeterProviderOptions(opts ...sdkmetric.Option) Option {
	return func(c *config) { c.meterOptions = append(c.meterOptions, opts...) }
}

// WithMetricReader registers an extra reader ahead of the harness reader.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(c *config) { c.readers = append(c.readers, r) }
}

// WithPrometheus also exposes metrics through a private Prometheus registry.
func WithPrometheus() Option {
	return func(c *config) { c.prometheus = true }
}

// WithInFlightInterval exports snapshots of open spans every d. They show up
// in FinishedSpans with telemetry.InFlightAttribute set.
func WithInFlightInterval(d time.Duration) Option {
	return func(c *config) { c.inFlightInterval = d }
}

// WithLogger sets where the harness writes its own debug output.
func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithRegistry installs into r instead of the default registry, leaving the
// otel globals alone.
func WithRegistry(r *telemetry.Registry) Option {
	return func(c *config) { c.registry = r }
}

// Harness owns one tracer, meter and logger provider backed by in-memory
// exporters.
type Harness struct {
	registry *telemetry.Registry
	logger   logger.Logger

	exporter  *tracetest.InMemoryExporter
	processor *telemetry.InFlightSpanProcessor
	tp        *sdktrace.TracerProvider

	reader *sdkmetric.ManualReader
	mp     *sdkmetric.MeterProvider

	logs *LogExporter
	lp   *sdklog.LoggerProvider

	promRegistry *prometheus.Registry
	promHandler  http.Handler

	mu     sync.Mutex
	closed bool
	// final holds the last collection once the meter provider is shut down.
	final *metricdata.ResourceMetrics
}

// retainingExporter keeps the captured spans when the tracer provider shuts
// down. InMemoryExporter drops them on Shutdown.
type retainingExporter struct {
	*tracetest.InMemoryExporter
}

func (retainingExporter) Shutdown(context.Context) error {
	return nil
}

// New builds a harness and installs its providers, replacing whatever was
// installed before.
func New(opts ...Option) *Harness {
	cfg := config{
		logger:   zerologger.Nop(),
		registry: telemetry.DefaultRegistry(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &Harness{
		registry: cfg.registry,
		logger:   cfg.logger,
	}
	res := cfg.buildResource(h.logger)

	h.exporter = tracetest.NewInMemoryExporter()
	h.processor = telemetry.NewInFlightSpanProcessor(retainingExporter{h.exporter},
		telemetry.WithUpdateInterval(cfg.inFlightInterval))

	tpOpts := append([]sdktrace.TracerProviderOption{sdktrace.WithResource(res)}, cfg.tracerOptions...)
	tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(h.processor))
	h.tp = sdktrace.NewTracerProvider(tpOpts...)

	h.replace(telemetry.SignalTrace, h.registry.ResetTraceGlobals)
	h.registry.SetTracerProvider(h.tp)
	h.exporter.Reset()

	h.reader = sdkmetric.NewManualReader()
	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range cfg.readers {
		mpOpts = append(mpOpts, sdkmetric.WithReader(r))
	}
	mpOpts = append(mpOpts, sdkmetric.WithReader(h.reader))
	if cfg.prometheus {
		mpOpts = append(mpOpts, h.prometheusReader()...)
	}
	mpOpts = append(mpOpts, cfg.meterOptions...)
	h.mp = sdkmetric.NewMeterProvider(mpOpts...)

	h.replace(telemetry.SignalMetric, h.registry.ResetMetricsGlobals)
	h.registry.SetMeterProvider(h.mp)

	h.logs = NewLogExporter()
	h.lp = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewSimpleProcessor(h.logs)),
	)

	h.replace(telemetry.SignalLog, h.registry.ResetLogsGlobals)
	h.registry.SetLoggerProvider(h.lp)

	return h
}

// NewT builds a harness that is reset when tb finishes.
func NewT(tb testing.TB, opts ...Option) *Harness {
	tb.Helper()
	h := New(opts...)
	tb.Cleanup(h.Reset)
	return h
}

func (c *config) buildResource(log logger.Logger) *resource.Resource {
	res := c.resource
	if res == nil {
		res = resource.Default()
	}
	if len(c.attributes) == 0 {
		return res
	}

	merged, err := resource.Merge(res, resource.NewSchemaless(c.attributes...))
	if err != nil {
		log.Debug().Err(err).Msg("resource merge failed, using base resource")
		return res
	}
	return merged
}

func (h *Harness) prometheusReader() []sdkmetric.Option {
	reg := prometheus.NewRegistry()
	reader, handler, err := telemetry.NewPrometheusReader(reg)
	if err != nil {
		h.logger.Debug().Err(err).Msg("prometheus reader unavailable")
		return nil
	}
	h.promRegistry = reg
	h.promHandler = handler
	return []sdkmetric.Option{sdkmetric.WithReader(reader)}
}

func (h *Harness) replace(signal telemetry.Signal, reset func()) {
	if owner := h.registry.Owner(signal); owner != "" {
		h.logger.Debug().
			Str("signal", string(signal)).
			Str("owner", owner).
			Msg("replacing installed provider")
	}
	reset()
}

// FinishedSpans returns every ended span in the order it ended.
func (h *Harness) FinishedSpans() []SpanRecord {
	return recordsFromStubs(h.exporter.GetSpans())
}

// InFlightSpans returns snapshots of spans that were started but not ended.
func (h *Harness) InFlightSpans() []SpanRecord {
	return recordsFromStubs(tracetest.SpanStubsFromReadOnlySpans(h.processor.InFlight()))
}

// SpansNamed returns the finished spans called name.
func (h *Harness) SpansNamed(name string) []SpanRecord {
	var out []SpanRecord
	for _, s := range h.FinishedSpans() {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// ClearSpans drops the finished spans recorded so far.
func (h *Harness) ClearSpans() {
	h.exporter.Reset()
}

// Logs returns every log record emitted through the harness logger provider.
func (h *Harness) Logs() []sdklog.Record {
	return h.logs.Records()
}

// ClearLogs drops the log records captured so far.
func (h *Harness) ClearLogs() {
	h.logs.Reset()
}

func (h *Harness) Exporter() *tracetest.InMemoryExporter    { return h.exporter }
func (h *Harness) TracerProvider() *sdktrace.TracerProvider { return h.tp }
func (h *Harness) MeterProvider() *sdkmetric.MeterProvider  { return h.mp }
func (h *Harness) LoggerProvider() *sdklog.LoggerProvider   { return h.lp }
func (h *Harness) MetricReader() *sdkmetric.ManualReader    { return h.reader }

// PrometheusGatherer is nil unless WithPrometheus was given.
func (h *Harness) PrometheusGatherer() prometheus.Gatherer {
	if h.promRegistry == nil {
		return nil
	}
	return h.promRegistry
}

// PrometheusHandler serves the Prometheus exposition, nil unless
// WithPrometheus was given.
func (h *Harness) PrometheusHandler() http.Handler {
	return h.promHandler
}

// Context returns the harness providers for code that takes them explicitly.
func (h *Harness) Context() telemetry.Context {
	return telemetry.Context{
		TracerProvider: h.tp,
		MeterProvider:  h.mp,
		LoggerProvider: h.lp,
	}
}

// Reset empties every registry slot and shuts the harness providers down.
// Spans, logs and metrics captured so far stay readable. Only the first call
// has any effect.
func (h *Harness) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true

	h.registry.ResetGlobals()

	ctx := context.Background()
	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(ctx, &rm); err != nil {
		h.logger.Debug().Err(err).Msg("final metric collection failed")
	}
	h.final = &rm

	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": h.tp.Shutdown,
		"meter":  h.mp.Shutdown,
		"logger": h.lp.Shutdown,
	} {
		if err := shutdown(ctx); err != nil {
			h.logger.Debug().Err(err).Str("provider", name).Msg("shutdown failed")
		}
	}
}
