package telemetry

import (
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ekristen/go-flowtel/logger"
)

// Logger is an alias for logger.Logger so callers can hand in their own.
type Logger = logger.Logger

// Metrics exporter names accepted in Options.MetricsExporter and
// OTEL_METRICS_EXPORTER. Several may be combined as a comma list.
const (
	MetricsExporterOTLP       = "otlp"
	MetricsExporterPrometheus = "prometheus"
	MetricsExporterNone       = "none"
)

// Options holds configuration for New.
type Options struct {
	ServiceName    string
	ServiceVersion string

	// Logger is used as is when set. Otherwise a zerolog logger is built from
	// the LogConsole* fields.
	Logger Logger

	LogConsoleOutput bool
	LogConsoleColor  bool

	// BatchExport selects batch span and log processors. The default exports
	// synchronously, which suits CLIs and short lived processes.
	BatchExport bool

	// MetricsExporter overrides OTEL_METRICS_EXPORTER.
	MetricsExporter string

	// PrometheusServer starts an HTTP server serving PrometheusPath on
	// PrometheusPort when the prometheus exporter is active. Without it the
	// handler is only available through Telemetry.PrometheusHandler.
	PrometheusServer bool
	PrometheusPort   int
	PrometheusPath   string

	// ResourceAttributes are added to the service resource.
	ResourceAttributes []attribute.KeyValue

	// Registry receives the providers. Nil means the process wide default.
	Registry *Registry
}

// DefaultOptions returns Options with default values.
func DefaultOptions() *Options {
	return &Options{
		ServiceName:      "unknown",
		ServiceVersion:   "unknown",
		LogConsoleOutput: true,
		LogConsoleColor:  true,
		PrometheusPort:   9090,
		PrometheusPath:   "/metrics",
	}
}

// applyEnvVars overrides options from the environment:
//
//	OTEL_SERVICE_NAME, OTEL_SERVICE_VERSION, OTEL_METRICS_EXPORTER,
//	PROMETHEUS_PORT, PROMETHEUS_PATH
//
// OTEL_SERVICE_VERSION is not a standard OTel variable but is accepted
// alongside OTEL_RESOURCE_ATTRIBUTES. An unparsable port is ignored.
func (o *Options) applyEnvVars() {
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		o.ServiceName = v
	}
	if v := os.Getenv("OTEL_SERVICE_VERSION"); v != "" {
		o.ServiceVersion = v
	}
	if v := os.Getenv("OTEL_METRICS_EXPORTER"); v != "" {
		o.MetricsExporter = v
	}
	if v := os.Getenv("PROMETHEUS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			o.PrometheusPort = port
		}
	}
	if v := os.Getenv("PROMETHEUS_PATH"); v != "" {
		o.PrometheusPath = v
	}
}

// metricsExporters splits the configured exporter list, dropping blanks and
// "none".
func (o *Options) metricsExporters() []string {
	var out []string
	for _, name := range strings.Split(o.MetricsExporter, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || name == MetricsExporterNone {
			continue
		}
		out = append(out, name)
	}
	return out
}

// shouldEnableOTel reports whether the environment asks for any OTel export.
// Telemetry is a no-op unless an endpoint or exporter is configured, and
// OTEL_SDK_DISABLED=true wins over everything.
func shouldEnableOTel() bool {
	if disabled, _ := strconv.ParseBool(os.Getenv("OTEL_SDK_DISABLED")); disabled {
		return false
	}

	for _, key := range []string{
		"OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT",
		"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT",
		"OTEL_EXPORTER_OTLP_LOGS_ENDPOINT",
	} {
		if os.Getenv(key) != "" {
			return true
		}
	}

	for _, key := range []string{
		"OTEL_TRACES_EXPORTER",
		"OTEL_METRICS_EXPORTER",
		"OTEL_LOGS_EXPORTER",
	} {
		if exp := os.Getenv(key); exp != "" && exp != MetricsExporterNone {
			return true
		}
	}

	return false
}

// signalEnabled applies the per signal *_EXPORTER=none switch on top of
// shouldEnableOTel.
func signalEnabled(envKey string) bool {
	return shouldEnableOTel() && os.Getenv(envKey) != MetricsExporterNone
}

func shouldEnableTraces() bool  { return signalEnabled("OTEL_TRACES_EXPORTER") }
func shouldEnableMetrics() bool { return signalEnabled("OTEL_METRICS_EXPORTER") }
func shouldEnableLogs() bool    { return signalEnabled("OTEL_LOGS_EXPORTER") }
