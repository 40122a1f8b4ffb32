package telemetrytest

import (
	"context"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// CollectMetrics pulls a snapshot from the harness reader. After Reset it
// returns the last snapshot taken before shutdown.
func (h *Harness) CollectMetrics(ctx context.Context) (metricdata.ResourceMetrics, error) {
	h.mu.Lock()
	final := h.final
	h.mu.Unlock()
	if final != nil {
		return *final, nil
	}

	var rm metricdata.ResourceMetrics
	err := h.reader.Collect(ctx, &rm)
	return rm, err
}

// Metric returns the first collected metric called name.
func (h *Harness) Metric(ctx context.Context, name string) (metricdata.Metrics, bool) {
	rm, err := h.CollectMetrics(ctx)
	if err != nil {
		h.logger.Debug().Err(err).Str("metric", name).Msg("collect failed")
		return metricdata.Metrics{}, false
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

// Int64Sum adds up every data point of an int64 counter or up-down counter.
func (h *Harness) Int64Sum(ctx context.Context, name string) (int64, bool) {
	return sumOf[int64](ctx, h, name)
}

// Float64Sum adds up every data point of a float64 counter or up-down counter.
func (h *Harness) Float64Sum(ctx context.Context, name string) (float64, bool) {
	return sumOf[float64](ctx, h, name)
}

func sumOf[N int64 | float64](ctx context.Context, h *Harness, name string) (N, bool) {
	m, ok := h.Metric(ctx, name)
	if !ok {
		return 0, false
	}
	sum, ok := m.Data.(metricdata.Sum[N])
	if !ok {
		return 0, false
	}

	var total N
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total, true
}
