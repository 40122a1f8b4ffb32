package telemetrytest

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// SpanRecord is a flattened, comparable view of an exported span.
type SpanRecord struct {
	Name   string
	Kind   trace.SpanKind
	Status sdktrace.Status

	Attributes map[attribute.Key]attribute.Value
	Events     []sdktrace.Event

	StartTime time.Time
	EndTime   time.Time

	TraceID      trace.TraceID
	SpanID       trace.SpanID
	ParentSpanID trace.SpanID

	Scope string
}

func recordFromStub(s tracetest.SpanStub) SpanRecord {
	attrs := make(map[attribute.Key]attribute.Value, len(s.Attributes))
	for _, kv := range s.Attributes {
		attrs[kv.Key] = kv.Value
	}

	return SpanRecord{
		Name:         s.Name,
		Kind:         s.SpanKind,
		Status:       s.Status,
		Attributes:   attrs,
		Events:       s.Events,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		TraceID:      s.SpanContext.TraceID(),
		SpanID:       s.SpanContext.SpanID(),
		ParentSpanID: s.Parent.SpanID(),
		Scope:        s.InstrumentationScope.Name,
	}
}

func recordsFromStubs(stubs tracetest.SpanStubs) []SpanRecord {
	out := make([]SpanRecord, 0, len(stubs))
	for _, s := range stubs {
		out = append(out, recordFromStub(s))
	}
	return out
}

// Attr returns the value stored under key.
func (r SpanRecord) Attr(key string) (attribute.Value, bool) {
	v, ok := r.Attributes[attribute.Key(key)]
	return v, ok
}

// Duration is EndTime minus StartTime.
func (r SpanRecord) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// IsRoot reports whether the span has no parent.
func (r SpanRecord) IsRoot() bool {
	return !r.ParentSpanID.IsValid()
}
