package observability

import (
	"time"

	"github.com/rs/zerolog"
	otellog "go.opentelemetry.io/otel/log"
)

// LogHook is a zerolog hook that mirrors every event to an OpenTelemetry logger.
type LogHook struct {
	logger otellog.Logger
}

// NewLogHook creates a hook emitting to logger.
func NewLogHook(logger otellog.Logger) *LogHook {
	return &LogHook{logger: logger}
}

// Run implements zerolog.Hook.
func (h *LogHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if h == nil || h.logger == nil || level == zerolog.NoLevel || level == zerolog.Disabled {
		return
	}

	var rec otellog.Record
	now := time.Now()
	rec.SetTimestamp(now)
	rec.SetObservedTimestamp(now)
	rec.SetSeverity(severityOf(level))
	rec.SetSeverityText(level.String())
	rec.SetBody(otellog.StringValue(msg))

	h.logger.Emit(e.GetCtx(), rec)
}

func severityOf(level zerolog.Level) otellog.Severity {
	switch level {
	case zerolog.TraceLevel:
		return otellog.SeverityTrace
	case zerolog.DebugLevel:
		return otellog.SeverityDebug
	case zerolog.InfoLevel:
		return otellog.SeverityInfo
	case zerolog.WarnLevel:
		return otellog.SeverityWarn
	case zerolog.ErrorLevel:
		return otellog.SeverityError
	default:
		return otellog.SeverityFatal
	}
}
