package telemetry

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ekristen/go-flowtel/logger"
	zerologger "github.com/ekristen/go-flowtel/logger/zerolog"
)

func newTestRegistry(buf *bytes.Buffer) *Registry {
	return NewRegistry(WithRegistryLogger(zerologger.New(zerologger.Options{
		Output: buf,
		Level:  logger.WarnLevel,
	})))
}

func TestRegistry_SetOnce(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRegistry(&buf)

	first := sdktrace.NewTracerProvider()
	second := sdktrace.NewTracerProvider()

	if !r.SetTracerProvider(first) {
		t.Fatal("first SetTracerProvider() = false, want true")
	}
	if r.SetTracerProvider(second) {
		t.Fatal("second SetTracerProvider() = true, want false")
	}
	if r.TracerProvider() != first {
		t.Error("the first provider should remain installed")
	}
	if !strings.Contains(buf.String(), "overriding of current TracerProvider is not allowed") {
		t.Errorf("expected a warning, got %q", buf.String())
	}

	r.ResetTraceGlobals()
	if r.TracerProvider() != nil {
		t.Error("ResetTraceGlobals() should empty the slot")
	}
	if !r.SetTracerProvider(second) {
		t.Error("SetTracerProvider() after reset = false, want true")
	}
}

func TestRegistry_Signals(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRegistry(&buf)

	mp := sdkmetric.NewMeterProvider()
	if !r.SetMeterProvider(mp) || r.SetMeterProvider(sdkmetric.NewMeterProvider()) {
		t.Error("meter slot should accept exactly one provider")
	}
	if !strings.Contains(buf.String(), "MeterProvider") {
		t.Errorf("expected a meter warning, got %q", buf.String())
	}

	lp := sdklog.NewLoggerProvider()
	if !r.SetLoggerProvider(lp) || r.SetLoggerProvider(sdklog.NewLoggerProvider()) {
		t.Error("log slot should accept exactly one provider")
	}

	r.ResetMetricsGlobals()
	if r.MeterProvider() != nil || r.LoggerProvider() == nil {
		t.Error("ResetMetricsGlobals() should only clear the meter slot")
	}

	r.ResetLogsGlobals()
	if r.LoggerProvider() != nil {
		t.Error("ResetLogsGlobals() should clear the log slot")
	}
}

func TestRegistry_ResetIsIdempotent(t *testing.T) {
	r := newTestRegistry(&bytes.Buffer{})
	r.SetTracerProvider(sdktrace.NewTracerProvider())
	r.SetMeterProvider(sdkmetric.NewMeterProvider())

	r.ResetGlobals()
	r.ResetGlobals()

	if r.TracerProvider() != nil || r.MeterProvider() != nil || r.LoggerProvider() != nil {
		t.Error("ResetGlobals() should leave every slot empty")
	}
}

func TestRegistry_Release(t *testing.T) {
	r := newTestRegistry(&bytes.Buffer{})

	owner := sdktrace.NewTracerProvider()
	other := sdktrace.NewTracerProvider()
	r.SetTracerProvider(owner)

	if r.ReleaseTracerProvider(other) {
		t.Error("ReleaseTracerProvider() with a foreign provider = true, want false")
	}
	if r.ReleaseTracerProvider(nil) {
		t.Error("ReleaseTracerProvider(nil) = true, want false")
	}
	if !r.ReleaseTracerProvider(owner) {
		t.Error("ReleaseTracerProvider() with the owner = false, want true")
	}
	if r.TracerProvider() != nil {
		t.Error("slot should be empty after release")
	}
}

func TestRegistry_ContextUsesNoopForEmptySlots(t *testing.T) {
	r := newTestRegistry(&bytes.Buffer{})

	tc := r.Context()
	_, span := tc.Tracer("test").Start(t.Context(), "span")
	defer span.End()

	if span.SpanContext().IsValid() {
		t.Error("an empty registry should hand out a no-op tracer")
	}
}

func TestRegistry_NewIsIsolatedFromGlobals(t *testing.T) {
	t.Cleanup(ResetGlobals)
	ResetGlobals()

	r := newTestRegistry(&bytes.Buffer{})
	tp := sdktrace.NewTracerProvider()
	r.SetTracerProvider(tp)

	if otel.GetTracerProvider() == tp {
		t.Error("an isolated registry must not touch the otel globals")
	}
}

// Cached before any provider is installed, the way instrumented packages
// hold their tracers and instruments.
var (
	cachedTracer     = otel.Tracer("telemetry/cached")
	cachedCounter, _ = otel.Meter("telemetry/cached").Int64Counter("cached.calls")
	cachedLogger     = global.GetLoggerProvider().Logger("telemetry/cached")
)

func TestDefaultRegistry_DrivesGlobals(t *testing.T) {
	t.Cleanup(ResetGlobals)
	ResetGlobals()
	ctx := context.Background()

	for _, name := range []string{"first", "second"} {
		t.Run(name, func(t *testing.T) {
			exporter := tracetest.NewInMemoryExporter()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
			reader := sdkmetric.NewManualReader()
			mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
			logs := &recordingExporter{}
			lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(logs)))

			if !SetTracerProvider(tp) || !SetMeterProvider(mp) || !SetLoggerProvider(lp) {
				t.Fatal("installing into an empty default registry should succeed")
			}

			_, span := cachedTracer.Start(ctx, "cached")
			span.End()
			_, span = otel.Tracer("telemetry/fresh").Start(ctx, "fresh")
			span.End()
			if got := len(exporter.GetSpans()); got != 2 {
				t.Errorf("installed provider got %d spans, want 2", got)
			}

			cachedCounter.Add(ctx, 1)
			if got := counterSum(t, reader, "cached.calls"); got != 1 {
				t.Errorf("cached.calls = %d, want 1", got)
			}

			var record otellog.Record
			record.SetBody(otellog.StringValue(name))
			cachedLogger.Emit(ctx, record)
			if got := logs.count(); got != 1 {
				t.Errorf("installed provider got %d log records, want 1", got)
			}

			ResetTraceGlobals()
			_, span = cachedTracer.Start(ctx, "after-reset")
			if span.IsRecording() {
				t.Error("ResetTraceGlobals() should leave the globals without a recording tracer")
			}
			span.End()
			cachedCounter.Add(ctx, 1)
			if got := counterSum(t, reader, "cached.calls"); got != 2 {
				t.Errorf("ResetTraceGlobals() should not touch metrics: cached.calls = %d, want 2", got)
			}

			ResetGlobals()
			cachedCounter.Add(ctx, 1)
			if got := counterSum(t, reader, "cached.calls"); got != 2 {
				t.Errorf("a reset meter slot should drop measurements: cached.calls = %d, want 2", got)
			}
		})
	}
}

func counterSum(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && m.Name == name {
				var total int64
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
				return total
			}
		}
	}
	return 0
}

type recordingExporter struct {
	mu sync.Mutex
	n  int
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	e.n += len(records)
	e.mu.Unlock()
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func (e *recordingExporter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.n
}

func TestRegistry_ConcurrentSet(t *testing.T) {
	r := newTestRegistry(&bytes.Buffer{})

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.SetTracerProvider(sdktrace.NewTracerProvider()) {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if won != 1 {
		t.Errorf("%d concurrent installs succeeded, want exactly 1", won)
	}
}

func TestRegistry_Owner(t *testing.T) {
	r := newTestRegistry(&bytes.Buffer{})

	if r.Owner(SignalTrace) != "" {
		t.Error("empty slot should have no owner")
	}

	r.SetTracerProvider(sdktrace.NewTracerProvider())
	first := r.Owner(SignalTrace)
	if first == "" {
		t.Fatal("installed slot should have an owner token")
	}

	r.ResetTraceGlobals()
	if r.Owner(SignalTrace) != "" {
		t.Error("reset should drop the owner token")
	}

	r.SetTracerProvider(sdktrace.NewTracerProvider())
	if second := r.Owner(SignalTrace); second == "" || second == first {
		t.Errorf("second install owner = %q, want a fresh token", second)
	}
}
