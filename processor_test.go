package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newInFlightProvider(opts ...InFlightOption) (*sdktrace.TracerProvider, *InFlightSpanProcessor, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	processor := NewInFlightSpanProcessor(exporter, opts...)
	return sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(processor)), processor, exporter
}

func hasInFlightAttribute(s sdktrace.ReadOnlySpan) bool {
	for _, kv := range s.Attributes() {
		if kv.Key == InFlightAttribute && kv.Value.AsBool() {
			return true
		}
	}
	return false
}

func TestInFlightSpanProcessor_TracksOpenSpans(t *testing.T) {
	tp, processor, exporter := newInFlightProvider()
	defer tp.Shutdown(context.Background())

	tracer := tp.Tracer("test")
	ctx, parent := tracer.Start(context.Background(), "parent")
	_, child := tracer.Start(ctx, "child")

	open := processor.InFlight()
	if len(open) != 2 {
		t.Fatalf("InFlight() = %d spans, want 2", len(open))
	}
	if open[0].Name() != "parent" || open[1].Name() != "child" {
		t.Errorf("InFlight() order = %s, %s; want parent, child", open[0].Name(), open[1].Name())
	}
	for _, s := range open {
		if !hasInFlightAttribute(s) {
			t.Errorf("snapshot %s lacks the in-flight attribute", s.Name())
		}
		if s.EndTime().IsZero() {
			t.Errorf("snapshot %s should have an end time", s.Name())
		}
	}
	if len(exporter.GetSpans()) != 0 {
		t.Error("nothing should be exported before End")
	}

	child.End()
	if got := processor.InFlight(); len(got) != 1 || got[0].Name() != "parent" {
		t.Errorf("InFlight() after child.End = %v, want only parent", got)
	}

	parent.End()
	if got := processor.InFlight(); len(got) != 0 {
		t.Errorf("InFlight() after all ended = %d spans, want 0", len(got))
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 || spans[0].Name != "child" || spans[1].Name != "parent" {
		t.Errorf("exported = %v, want child then parent", spans)
	}
	for _, s := range spans {
		for _, kv := range s.Attributes {
			if kv.Key == InFlightAttribute {
				t.Errorf("finished span %s should not carry the in-flight attribute", s.Name)
			}
		}
	}
}

func TestInFlightSpanProcessor_SnapshotDoesNotShareAttributes(t *testing.T) {
	tp, processor, _ := newInFlightProvider()
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "open",
		trace.WithAttributes(
			attribute.Int("a", 1),
			attribute.Int("b", 2),
			attribute.Int("c", 3),
			attribute.Int("d", 4),
		))
	defer span.End()

	open := processor.InFlight()
	if len(open) != 1 {
		t.Fatalf("InFlight() = %d spans, want 1", len(open))
	}
	span.SetAttributes(attribute.Int("e", 5))

	snapshot := open[0]
	if !hasInFlightAttribute(snapshot) {
		t.Error("snapshot lost the in-flight attribute after the span changed")
	}
	for _, kv := range snapshot.Attributes() {
		if kv.Key == "e" {
			t.Error("snapshot picked up an attribute set after it was taken")
		}
	}
	if got := len(snapshot.Attributes()); got != 5 {
		t.Errorf("snapshot has %d attributes, want 5", got)
	}
}

func TestInFlightSpanProcessor_UpdateInterval(t *testing.T) {
	tp, _, exporter := newInFlightProvider(WithUpdateInterval(10 * time.Millisecond))
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "long-running")

	deadline := time.Now().Add(2 * time.Second)
	for len(exporter.GetSpans()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	span.End()

	var sawSnapshot bool
	for _, s := range exporter.GetSpans() {
		for _, kv := range s.Attributes {
			if kv.Key == InFlightAttribute {
				sawSnapshot = true
			}
		}
	}
	if !sawSnapshot {
		t.Error("expected a periodic in-flight snapshot to be exported")
	}
}

func TestInFlightSpanProcessor_Shutdown(t *testing.T) {
	processor := NewInFlightSpanProcessor(tracetest.NewInMemoryExporter(), WithUpdateInterval(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := processor.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if err := processor.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
	if err := processor.ForceFlush(ctx); err != nil {
		t.Errorf("ForceFlush() error = %v", err)
	}
}
