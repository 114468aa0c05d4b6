package audit

import (
	"go.uber.org/zap"

	"github.com/stagepass/go-stagepass-core/logger"
)

// LogSink writes every event to the structured log.
type LogSink struct {
	logger *logger.CtxZapLogger
}

// NewLogSink creates a sink over the audit module logger.
func NewLogSink(log *logger.CtxZapLogger) *LogSink {
	if log == nil {
		log = logger.GetLogger("audit")
	}
	return &LogSink{logger: log}
}

func (s *LogSink) Emit(event Event) {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("key", event.Key),
		zap.Time("event_time", event.Timestamp),
	}
	for k, v := range event.Details {
		fields = append(fields, zap.Any(k, v))
	}

	switch event.Type {
	case EventDDoSSuspect, EventBreakerOpened, EventInfraFailure:
		s.logger.Warn("audit event", fields...)
	default:
		s.logger.Info("audit event", fields...)
	}
}

func (s *LogSink) Close() error {
	return nil
}
