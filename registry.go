package telemetry

import (
	"os"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ekristen/go-flowtel/logger"
	zerologger "github.com/ekristen/go-flowtel/logger/zerolog"
)

// Signal names a registry slot.
type Signal string

const (
	SignalTrace  Signal = "trace"
	SignalMetric Signal = "metric"
	SignalLog    Signal = "log"
)

// Registry holds one provider per signal with set-once semantics. A set on an
// occupied slot is refused and logged; the slot has to be reset first. Every
// install is stamped with a random owner token so logs can tell installs
// apart.
//
// The default registry backs the otel globals: on its first install it puts
// forwarding providers into otel.SetTracerProvider, otel.SetMeterProvider and
// global.SetLoggerProvider, and from then on every otel.Tracer, otel.Meter or
// global logger resolves whatever the slot holds at call time. Empty slots
// resolve to no-op providers. Registries made with NewRegistry are isolated.
type Registry struct {
	mu sync.Mutex

	tp trace.TracerProvider
	mp metric.MeterProvider
	lp log.LoggerProvider

	owners map[Signal]string

	global    bool
	forwardTP *forwardTracerProvider
	forwardMP *forwardMeterProvider
	forwardLP *forwardLoggerProvider

	logger logger.Logger
}

// RegistryOption configures NewRegistry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used for refused overrides.
func WithRegistryLogger(l logger.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// withGlobals makes the registry back the otel globals.
func withGlobals() RegistryOption {
	return func(r *Registry) { r.global = true }
}

// NewRegistry returns an empty registry that does not touch the otel globals.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		owners: make(map[Signal]string),
		logger: zerologger.New(zerologger.Options{
			Output: zerologger.NewConsoleWriter(os.Stderr, false),
			Level:  logger.WarnLevel,
		}),
	}
	r.forwardTP = &forwardTracerProvider{r: r}
	r.forwardMP = &forwardMeterProvider{r: r}
	r.forwardLP = &forwardLoggerProvider{r: r}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRegistry = NewRegistry(withGlobals())

// DefaultRegistry returns the process wide registry backing the package level
// Set and Reset functions.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// swapLogger installs l and returns the logger it replaced.
func (r *Registry) swapLogger(l logger.Logger) logger.Logger {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.logger
	if l != nil {
		r.logger = l
	}
	return prev
}

// restoreLogger puts prev back if the registry still logs through cur.
func (r *Registry) restoreLogger(cur, prev logger.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev != nil && r.logger == cur {
		r.logger = prev
	}
}

func (r *Registry) claim(signal Signal) {
	r.owners[signal] = uuid.NewString()
}

// refused logs outside the lock so loggers that emit through the otel
// globals can resolve the slots.
func refused(l logger.Logger, kind, owner string) bool {
	l.Warn().
		Str("provider", kind).
		Str("owner", owner).
		Msgf("overriding of current %s is not allowed", kind)
	return false
}

// installGlobals points the otel globals at the forwarders. It runs without
// r.mu held: otel hands cached instruments and callbacks to the new provider
// right away, which calls back into the registry.
func (r *Registry) installGlobals() {
	if !r.global {
		return
	}
	if otel.GetTracerProvider() != trace.TracerProvider(r.forwardTP) {
		otel.SetTracerProvider(r.forwardTP)
	}
	if otel.GetMeterProvider() != metric.MeterProvider(r.forwardMP) {
		otel.SetMeterProvider(r.forwardMP)
	}
	if global.GetLoggerProvider() != log.LoggerProvider(r.forwardLP) {
		global.SetLoggerProvider(r.forwardLP)
	}
}

// Owner returns the token stamped on the provider currently in the slot, or
// "" when the slot is empty.
func (r *Registry) Owner(signal Signal) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owners[signal]
}

// SetTracerProvider installs tp unless a tracer provider is already set.
func (r *Registry) SetTracerProvider(tp trace.TracerProvider) bool {
	r.mu.Lock()
	if r.tp != nil {
		l, owner := r.logger, r.owners[SignalTrace]
		r.mu.Unlock()
		return refused(l, "TracerProvider", owner)
	}
	r.tp = tp
	r.claim(SignalTrace)
	r.mu.Unlock()

	r.installGlobals()
	return true
}

// SetMeterProvider installs mp unless a meter provider is already set.
func (r *Registry) SetMeterProvider(mp metric.MeterProvider) bool {
	r.mu.Lock()
	if r.mp != nil {
		l, owner := r.logger, r.owners[SignalMetric]
		r.mu.Unlock()
		return refused(l, "MeterProvider", owner)
	}
	r.mp = mp
	r.claim(SignalMetric)
	r.mu.Unlock()

	r.installGlobals()
	return true
}

// SetLoggerProvider installs lp unless a logger provider is already set.
func (r *Registry) SetLoggerProvider(lp log.LoggerProvider) bool {
	r.mu.Lock()
	if r.lp != nil {
		l, owner := r.logger, r.owners[SignalLog]
		r.mu.Unlock()
		return refused(l, "LoggerProvider", owner)
	}
	r.lp = lp
	r.claim(SignalLog)
	r.mu.Unlock()

	r.installGlobals()
	return true
}

// TracerProvider returns the installed provider or nil.
func (r *Registry) TracerProvider() trace.TracerProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tp
}

// MeterProvider returns the installed provider or nil.
func (r *Registry) MeterProvider() metric.MeterProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mp
}

// LoggerProvider returns the installed provider or nil.
func (r *Registry) LoggerProvider() log.LoggerProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lp
}

// Context returns the installed providers as a Context. Empty slots are
// no-op providers.
func (r *Registry) Context() Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Context{
		TracerProvider: r.tp,
		MeterProvider:  r.mp,
		LoggerProvider: r.lp,
	}.withNoopFallbacks()
}

// ResetTraceGlobals empties the trace slot. Code using the otel globals sees
// a no-op tracer provider until the next install. Calling it on an empty slot
// is a no-op.
func (r *Registry) ResetTraceGlobals() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetTrace()
}

func (r *Registry) resetTrace() {
	r.tp = nil
	delete(r.owners, SignalTrace)
}

// ResetMetricsGlobals empties the metric slot.
func (r *Registry) ResetMetricsGlobals() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetMetrics()
}

func (r *Registry) resetMetrics() {
	r.mp = nil
	delete(r.owners, SignalMetric)
}

// ResetLogsGlobals empties the log slot.
func (r *Registry) ResetLogsGlobals() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLogs()
}

func (r *Registry) resetLogs() {
	r.lp = nil
	delete(r.owners, SignalLog)
}

// ResetGlobals empties every slot.
func (r *Registry) ResetGlobals() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetTrace()
	r.resetMetrics()
	r.resetLogs()
}

// ReleaseTracerProvider empties the trace slot only if it still holds tp.
func (r *Registry) ReleaseTracerProvider(tp trace.TracerProvider) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tp == nil || r.tp != tp {
		return false
	}
	r.resetTrace()
	return true
}

// ReleaseMeterProvider empties the metric slot only if it still holds mp.
func (r *Registry) ReleaseMeterProvider(mp metric.MeterProvider) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mp == nil || r.mp != mp {
		return false
	}
	r.resetMetrics()
	return true
}

// ReleaseLoggerProvider empties the log slot only if it still holds lp.
func (r *Registry) ReleaseLoggerProvider(lp log.LoggerProvider) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lp == nil || r.lp != lp {
		return false
	}
	r.resetLogs()
	return true
}

// SetTracerProvider installs tp in the default registry.
func SetTracerProvider(tp trace.TracerProvider) bool { return defaultRegistry.SetTracerProvider(tp) }

// SetMeterProvider installs mp in the default registry.
func SetMeterProvider(mp metric.MeterProvider) bool { return defaultRegistry.SetMeterProvider(mp) }

// SetLoggerProvider installs lp in the default registry.
func SetLoggerProvider(lp log.LoggerProvider) bool { return defaultRegistry.SetLoggerProvider(lp) }

// ResetTraceGlobals empties the default registry's trace slot.
func ResetTraceGlobals() { defaultRegistry.ResetTraceGlobals() }

// ResetMetricsGlobals empties the default registry's metric slot.
func ResetMetricsGlobals() { defaultRegistry.ResetMetricsGlobals() }

// ResetLogsGlobals empties the default registry's log slot.
func ResetLogsGlobals() { defaultRegistry.ResetLogsGlobals() }

// ResetGlobals empties every slot of the default registry.
func ResetGlobals() { defaultRegistry.ResetGlobals() }
