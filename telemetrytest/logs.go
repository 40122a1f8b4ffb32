package telemetrytest

import (
	"context"
	"sync"

	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// LogExporter keeps every exported log record in memory.
type LogExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

var _ sdklog.Exporter = (*LogExporter)(nil)

func NewLogExporter() *LogExporter {
	return &LogExporter{}
}

// Export stores clones of records since the SDK reuses them.
func (e *LogExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

// Shutdown keeps the stored records so they can be read afterwards.
func (e *LogExporter) Shutdown(context.Context) error {
	return nil
}

func (e *LogExporter) ForceFlush(context.Context) error {
	return nil
}

// Records returns a copy of the stored records in export order.
func (e *LogExporter) Records() []sdklog.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]sdklog.Record, len(e.records))
	copy(out, e.records)
	return out
}

func (e *LogExporter) Reset() {
	e.mu.Lock()
	e.records = nil
	e.mu.Unlock()
}
