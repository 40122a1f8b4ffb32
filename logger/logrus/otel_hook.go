package logrus

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/log"
)

// OTelHook forwards logrus entries, including their fields, to an OTel logger.
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

// Levels implements logrus.Hook.
func (h *OTelHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (h *OTelHook) Fire(entry *logrus.Entry) error {
	if h == nil {
		return nil
	}

	var record log.Record
	record.SetTimestamp(entry.Time)
	record.SetBody(log.StringValue(entry.Message))
	record.SetSeverity(severityFor(entry.Level))
	record.SetSeverityText(entry.Level.String())

	for key, value := range entry.Data {
		record.AddAttributes(keyValue(key, value))
	}

	ctx := entry.Context
	if ctx == nil {
		ctx = context.Background()
	}
	h.logger.Emit(ctx, record)
	return nil
}

func keyValue(key string, v interface{}) log.KeyValue {
	switch val := v.(type) {
	case string:
		return log.String(key, val)
	case int:
		return log.Int(key, val)
	case int64:
		return log.Int64(key, val)
	case float64:
		return log.Float64(key, val)
	case bool:
		return log.Bool(key, val)
	case error:
		return log.String(key, val.Error())
	default:
		return log.String(key, fmt.Sprint(val))
	}
}

func severityFor(level logrus.Level) log.Severity {
	switch level {
	case logrus.TraceLevel:
		return log.SeverityTrace
	case logrus.DebugLevel:
		return log.SeverityDebug
	case logrus.WarnLevel:
		return log.SeverityWarn
	case logrus.ErrorLevel:
		return log.SeverityError
	case logrus.FatalLevel:
		return log.SeverityFatal
	case logrus.PanicLevel:
		return log.SeverityFatal4
	default:
		return log.SeverityInfo
	}
}
