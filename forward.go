package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	logembedded "go.opentelemetry.io/otel/log/embedded"
	"go.opentelemetry.io/otel/metric"
	metricembedded "go.opentelemetry.io/otel/metric/embedded"
	"go.opentelemetry.io/otel/trace"
	traceembedded "go.opentelemetry.io/otel/trace/embedded"
)

// The otel globals bind cached tracers, meters and loggers to the first
// provider ever installed. The default registry therefore installs these
// forwarders once and swaps only its slots; every call resolves the slot
// that is current at that moment.

type forwardTracerProvider struct {
	traceembedded.TracerProvider
	r *Registry
}

func (p *forwardTracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return &forwardTracer{r: p.r, name: name, opts: opts}
}

type forwardTracer struct {
	traceembedded.Tracer
	r    *Registry
	name string
	opts []trace.TracerOption
}

func (t *forwardTracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.r.Context().TracerProvider.Tracer(t.name, t.opts...).Start(ctx, spanName, opts...)
}

type forwardLoggerProvider struct {
	logembedded.LoggerProvider
	r *Registry
}

func (p *forwardLoggerProvider) Logger(name string, opts ...log.LoggerOption) log.Logger {
	return &forwardLogger{r: p.r, name: name, opts: opts}
}

type forwardLogger struct {
	logembedded.Logger
	r    *Registry
	name string
	opts []log.LoggerOption
}

func (l *forwardLogger) current() log.Logger {
	return l.r.Context().LoggerProvider.Logger(l.name, l.opts...)
}

func (l *forwardLogger) Emit(ctx context.Context, record log.Record) {
	l.current().Emit(ctx, record)
}

func (l *forwardLogger) Enabled(ctx context.Context, param log.EnabledParameters) bool {
	return l.current().Enabled(ctx, param)
}

type forwardMeterProvider struct {
	metricembedded.MeterProvider
	r *Registry
}

func (p *forwardMeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return &forwardMeter{r: p.r, name: name, opts: opts}
}

// forwardMeter resolves synchronous instruments on every measurement.
// Observable instruments and callbacks bind to the provider installed when
// they are created, because their registrations live inside that provider.
type forwardMeter struct {
	metricembedded.Meter
	r    *Registry
	name string
	opts []metric.MeterOption
}

func (m *forwardMeter) current() metric.Meter {
	return m.r.Context().MeterProvider.Meter(m.name, m.opts...)
}

func (m *forwardMeter) Int64Counter(name string, opts ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return &forwardInt64Counter{m: m, name: name, opts: opts}, nil
}

func (m *forwardMeter) Int64UpDownCounter(name string, opts ...metric.Int64UpDownCounterOption) (metric.Int64UpDownCounter, error) {
	return &forwardInt64UpDownCounter{m: m, name: name, opts: opts}, nil
}

func (m *forwardMeter) Int64Histogram(name string, opts ...metric.Int64HistogramOption) (metric.Int64Histogram, error) {
	return &forwardInt64Histogram{m: m, name: name, opts: opts}, nil
}

func (m *forwardMeter) Int64Gauge(name string, opts ...metric.Int64GaugeOption) (metric.Int64Gauge, error) {
	return &forwardInt64Gauge{m: m, name: name, opts: opts}, nil
}

func (m *forwardMeter) Float64Counter(name string, opts ...metric.Float64CounterOption) (metric.Float64Counter, error) {
	return &forwardFloat64Counter{m: m, name: name, opts: opts}, nil
}

func (m *forwardMeter) Float64UpDownCounter(name string, opts ...metric.Float64UpDownCounterOption) (metric.Float64UpDownCounter, error) {
	return &forwardFloat64UpDownCounter{m: m, name: name, opts: opts}, nil
}

func (m *forwardMeter) Float64Histogram(name string, opts ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	return &forwardFloat64Histogram{m: m, name: name, opts: opts}, nil
}

func (m *forwardMeter) Float64Gauge(name string, opts ...metric.Float64GaugeOption) (metric.Float64Gauge, error) {
	return &forwardFloat64Gauge{m: m, name: name, opts: opts}, nil
}

func (m *forwardMeter) Int64ObservableCounter(name string, opts ...metric.Int64ObservableCounterOption) (metric.Int64ObservableCounter, error) {
	return m.current().Int64ObservableCounter(name, opts...)
}

func (m *forwardMeter) Int64ObservableUpDownCounter(name string, opts ...metric.Int64ObservableUpDownCounterOption) (metric.Int64ObservableUpDownCounter, error) {
	return m.current().Int64ObservableUpDownCounter(name, opts...)
}

func (m *forwardMeter) Int64ObservableGauge(name string, opts ...metric.Int64ObservableGaugeOption) (metric.Int64ObservableGauge, error) {
	return m.current().Int64ObservableGauge(name, opts...)
}

func (m *forwardMeter) Float64ObservableCounter(name string, opts ...metric.Float64ObservableCounterOption) (metric.Float64ObservableCounter, error) {
	return m.current().Float64ObservableCounter(name, opts...)
}

func (m *forwardMeter) Float64ObservableUpDownCounter(name string, opts ...metric.Float64ObservableUpDownCounterOption) (metric.Float64ObservableUpDownCounter, error) {
	return m.current().Float64ObservableUpDownCounter(name, opts...)
}

func (m *forwardMeter) Float64ObservableGauge(name string, opts ...metric.Float64ObservableGaugeOption) (metric.Float64ObservableGauge, error) {
	return m.current().Float64ObservableGauge(name, opts...)
}

func (m *forwardMeter) RegisterCallback(f metric.Callback, instruments ...metric.Observable) (metric.Registration, error) {
	return m.current().RegisterCallback(f, instruments...)
}

type forwardInt64Counter struct {
	metricembedded.Int64Counter
	m    *forwardMeter
	name string
	opts []metric.Int64CounterOption
}

func (c *forwardInt64Counter) Add(ctx context.Context, incr int64, opts ...metric.AddOption) {
	inst, err := c.m.current().Int64Counter(c.name, c.opts...)
	if err != nil {
		otel.Handle(err)
		return
	}
	inst.Add(ctx, incr, opts...)
}

type forwardInt64UpDownCounter struct {
	metricembedded.Int64UpDownCounter
	m    *forwardMeter
	name string
	opts []metric.Int64UpDownCounterOption
}

func (c *forwardInt64UpDownCounter) Add(ctx context.Context, incr int64, opts ...metric.AddOption) {
	inst, err := c.m.current().Int64UpDownCounter(c.name, c.opts...)
	if err != nil {
		otel.Handle(err)
		return
	}
	inst.Add(ctx, incr, opts...)
}

type forwardInt64Histogram struct {
	metricembedded.Int64Histogram
	m    *forwardMeter
	name string
	opts []metric.Int64HistogramOption
}

func (h *forwardInt64Histogram) Record(ctx context.Context, v int64, opts ...metric.RecordOption) {
	inst, err := h.m.current().Int64Histogram(h.name, h.opts...)
	if err != nil {
		otel.Handle(err)
		return
	}
	inst.Record(ctx, v, opts...)
}

type forwardInt64Gauge struct {
	metricembedded.Int64Gauge
	m    *forwardMeter
	name string
	opts []metric.Int64GaugeOption
}

func (g *forwardInt64Gauge) Record(ctx context.Context, v int64, opts ...metric.RecordOption) {
	inst, err := g.m.current().Int64Gauge(g.name, g.opts...)
	if err != nil {
		otel.Handle(err)
		return
	}
	inst.Record(ctx, v, opts...)
}

type forwardFloat64Counter struct {
	metricembedded.Float64Counter
	m    *forwardMeter
	name string
	opts []metric.Float64CounterOption
}

func (c *forwardFloat64Counter) Add(ctx context.Context, incr float64, opts ...metric.AddOption) {
	inst, err := c.m.current().Float64Counter(c.name, c.opts...)
	if err != nil {
		otel.Handle(err)
		return
	}
	inst.Add(ctx, incr, opts...)
}

type forwardFloat64UpDownCounter struct {
	metricembedded.Float64UpDownCounter
	m    *forwardMeter
	name string
	opts []metric.Float64UpDownCounterOption
}

func (c *forwardFloat64UpDownCounter) Add(ctx context.Context, incr float64, opts ...metric.AddOption) {
	inst, err := c.m.current().Float64UpDownCounter(c.name, c.opts...)
	if err != nil {
		otel.Handle(err)
		return
	}
	inst.Add(ctx, incr, opts...)
}

type forwardFloat64Histogram struct {
	metricembedded.Float64Histogram
	m    *forwardMeter
	name string
	opts []metric.Float64HistogramOption
}

func (h *forwardFloat64Histogram) Record(ctx context.Context, v float64, opts ...metric.RecordOption) {
	inst, err := h.m.current().Float64Histogram(h.name, h.opts...)
	if err != nil {
		otel.Handle(err)
		return
	}
	inst.Record(ctx, v, opts...)
}

type forwardFloat64Gauge struct {
	metricembedded.Float64Gauge
	m    *forwardMeter
	name string
	opts []metric.Float64GaugeOption
}

func (g *forwardFloat64Gauge) Record(ctx context.Context, v float64, opts ...metric.RecordOption) {
	inst, err := g.m.current().Float64Gauge(g.name, g.opts...)
	if err != nil {
		otel.Handle(err)
		return
	}
	inst.Record(ctx, v, opts...)
}
