package zerolog

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/log"
)

// OTelHook forwards every zerolog event to an OTel logger. The event context
// (set through Ctx) is passed along so records carry the active span.
type OTelHook struct {
	logger log.Logger
}

// NewOTelHook returns nil when provider is nil.
func NewOTelHook(serviceName, serviceVersion string, provider log.LoggerProvider) *OTelHook {
	if provider == nil {
		return nil
	}

	return &OTelHook{
		logger: provider.Logger(serviceName, log.WithInstrumentationVersion(serviceVersion)),
	}
}

// Run implements zerolog.Hook.
func (h *OTelHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if h == nil || level == zerolog.NoLevel || level == zerolog.Disabled {
		return
	}

	var record log.Record
	record.SetTimestamp(time.Now())
	record.SetBody(log.StringValue(msg))
	record.SetSeverity(severityFor(level))
	record.SetSeverityText(level.String())

	ctx := e.GetCtx()
	if ctx == nil {
		ctx = context.Background()
	}
	h.logger.Emit(ctx, record)
}

func severityFor(level zerolog.Level) log.Severity {
	switch level {
	case zerolog.TraceLevel:
		return log.SeverityTrace
	case zerolog.DebugLevel:
		return log.SeverityDebug
	case zerolog.WarnLevel:
		return log.SeverityWarn
	case zerolog.ErrorLevel:
		return log.SeverityError
	case zerolog.FatalLevel:
		return log.SeverityFatal
	case zerolog.PanicLevel:
		return log.SeverityFatal4
	default:
		return log.SeverityInfo
	}
}
