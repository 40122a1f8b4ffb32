package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// newLoggerProvider returns nil when OTel logs are disabled.
func newLoggerProvider(ctx context.Context, res *resource.Resource, batchExport bool) (*log.LoggerProvider, error) {
	if !shouldEnableLogs() {
		return nil, nil
	}

	exporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	var processor log.Processor = log.NewSimpleProcessor(exporter)
	if batchExport {
		processor = log.NewBatchProcessor(exporter)
	}

	return log.NewLoggerProvider(
		log.WithProcessor(processor),
		log.WithResource(res),
	), nil
}

// newTracerProvider returns nil when OTel traces are disabled. Without batch
// export ended spans go through an InFlightSpanProcessor.
func newTracerProvider(ctx context.Context, res *resource.Resource, batchExport bool) (*trace.TracerProvider, error) {
	if !shouldEnableTraces() {
		return nil, nil
	}

	exporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	var processor trace.SpanProcessor = NewInFlightSpanProcessor(exporter)
	if batchExport {
		processor = trace.NewBatchSpanProcessor(exporter)
	}

	return trace.NewTracerProvider(
		trace.WithSpanProcessor(processor),
		trace.WithResource(res),
	), nil
}

// newMeterProvider builds a meter provider from the readers of every
// configured exporter. It returns nil when no exporter is active. The
// Prometheus handler is nil unless the prometheus exporter is in the list.
func newMeterProvider(ctx context.Context, res *resource.Resource, opts *Options) (*metric.MeterProvider, http.Handler, error) {
	exporters := opts.metricsExporters()
	if len(exporters) == 0 && opts.MetricsExporter == "" && shouldEnableMetrics() {
		exporters = []string{MetricsExporterOTLP}
	}
	if len(exporters) == 0 {
		return nil, nil, nil
	}

	var (
		readers []metric.Reader
		handler http.Handler
	)
	for _, name := range exporters {
		switch name {
		case MetricsExporterPrometheus:
			if handler != nil {
				continue
			}
			reader, h, err := NewPrometheusReader(prometheus.NewRegistry())
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create Prometheus reader: %w", err)
			}
			readers = append(readers, reader)
			handler = h
		case MetricsExporterOTLP:
			reader, err := newOTLPReader(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create OTLP reader: %w", err)
			}
			readers = append(readers, reader)
		default:
			return nil, nil, fmt.Errorf("unsupported metrics exporter: %s (supported: otlp, prometheus, none)", name)
		}
	}

	mpOpts := []metric.Option{metric.WithResource(res)}
	for _, r := range readers {
		mpOpts = append(mpOpts, metric.WithReader(r))
	}
	return metric.NewMeterProvider(mpOpts...), handler, nil
}

// NewPrometheusReader returns a metric reader registered with reg and an HTTP
// handler exposing reg.
func NewPrometheusReader(reg *prometheus.Registry) (metric.Reader, http.Handler, error) {
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}
	return exporter, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}), nil
}

// newOTLPReader wraps the OTLP gRPC metric exporter in a periodic reader.
// Metrics are always pushed periodically, so there is no batch switch here.
func newOTLPReader(ctx context.Context) (metric.Reader, error) {
	exporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}
	return metric.NewPeriodicReader(exporter), nil
}

// newResource describes the service and host. Extra attributes are appended.
func newResource(serviceName, serviceVersion string, extra ...attribute.KeyValue) *resource.Resource {
	hostName, _ := os.Hostname()

	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
		semconv.HostName(hostName),
	}
	attrs = append(attrs, extra...)

	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}
