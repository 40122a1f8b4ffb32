package telemetry

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// InFlightAttribute marks snapshots of spans that had not ended yet.
const InFlightAttribute = attribute.Key("flowtel.in-flight")

// InFlightSpanProcessor exports ended spans synchronously and keeps track of
// the ones still open so they can be inspected before End is called.
type InFlightSpanProcessor struct {
	exporter sdktrace.SpanExporter
	interval time.Duration

	mu    sync.Mutex
	seq   uint64
	spans map[trace.SpanID]openSpan

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

type openSpan struct {
	span sdktrace.ReadOnlySpan
	seq  uint64
}

var _ sdktrace.SpanProcessor = (*InFlightSpanProcessor)(nil)

// InFlightOption configures NewInFlightSpanProcessor.
type InFlightOption func(*InFlightSpanProcessor)

// WithUpdateInterval periodically exports snapshots of open spans, marked
// with InFlightAttribute. Zero, the default, disables it.
func WithUpdateInterval(d time.Duration) InFlightOption {
	return func(p *InFlightSpanProcessor) { p.interval = d }
}

// NewInFlightSpanProcessor returns a processor forwarding to exporter.
func NewInFlightSpanProcessor(exporter sdktrace.SpanExporter, opts ...InFlightOption) *InFlightSpanProcessor {
	p := &InFlightSpanProcessor{
		exporter: exporter,
		spans:    make(map[trace.SpanID]openSpan),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.interval > 0 {
		go p.run()
	} else {
		close(p.done)
	}
	return p
}

func (p *InFlightSpanProcessor) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.exportInFlight(context.Background())
		}
	}
}

func (p *InFlightSpanProcessor) exportInFlight(ctx context.Context) {
	snapshots := p.InFlight()
	if len(snapshots) == 0 {
		return
	}
	if err := p.exporter.ExportSpans(ctx, snapshots); err != nil {
		otel.Handle(err)
	}
}

// OnStart implements sdktrace.SpanProcessor.
func (p *InFlightSpanProcessor) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	p.mu.Lock()
	p.seq++
	p.spans[s.SpanContext().SpanID()] = openSpan{span: s, seq: p.seq}
	p.mu.Unlock()
}

// OnEnd implements sdktrace.SpanProcessor.
func (p *InFlightSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	p.mu.Lock()
	delete(p.spans, s.SpanContext().SpanID())
	p.mu.Unlock()

	if !s.SpanContext().IsSampled() {
		return
	}
	if err := p.exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{s}); err != nil {
		otel.Handle(err)
	}
}

// InFlight returns snapshots of the open spans in start order. Each
// snapshot ends "now" and carries InFlightAttribute=true.
func (p *InFlightSpanProcessor) InFlight() []sdktrace.ReadOnlySpan {
	p.mu.Lock()
	open := make([]openSpan, 0, len(p.spans))
	for _, s := range p.spans {
		open = append(open, s)
	}
	p.mu.Unlock()

	slices.SortFunc(open, func(a, b openSpan) int {
		return cmp.Compare(a.seq, b.seq)
	})

	now := time.Now()
	out := make([]sdktrace.ReadOnlySpan, 0, len(open))
	for _, s := range open {
		stub := tracetest.SpanStubFromReadOnlySpan(s.span)
		stub.EndTime = now
		// Attributes aliases the live span's slice.
		stub.Attributes = append(slices.Clone(stub.Attributes), InFlightAttribute.Bool(true))
		out = append(out, stub.Snapshot())
	}
	return out
}

// Shutdown stops the update loop and shuts the exporter down.
func (p *InFlightSpanProcessor) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		if p.interval > 0 {
			close(p.stop)
		}
	})

	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return p.exporter.Shutdown(ctx)
}

// ForceFlush implements sdktrace.SpanProcessor. Ended spans are exported as
// they end, so there is nothing buffered.
func (p *InFlightSpanProcessor) ForceFlush(ctx context.Context) error {
	return ctx.Err()
}
