package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"redoubt/server/logging"
)

// Zap bridges the event router into a zap logger so operational tooling that
// already consumes zap output sees game events alongside process logs.
type Zap struct {
	logger *zap.Logger
}

// NewZap constructs a zap-backed sink. A nil logger falls back to a no-op.
func NewZap(logger *zap.Logger) *Zap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Zap{logger: logger}
}

// Write satisfies logging.Sink.
func (s *Zap) Write(event logging.Event) error {
	fields := []zap.Field{
		zap.Uint64("tick", event.Tick),
		zap.Time("time", event.Time),
		zap.String("category", event.Category),
		zap.String("actorId", event.Actor.ID),
		zap.String("actorKind", string(event.Actor.Kind)),
	}
	if len(event.Targets) > 0 {
		ids := make([]string, 0, len(event.Targets))
		for _, target := range event.Targets {
			ids = append(ids, target.ID)
		}
		fields = append(fields, zap.Strings("targets", ids))
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}
	if len(event.Extra) > 0 {
		fields = append(fields, zap.Any("extra", event.Extra))
	}
	if event.TraceID != "" {
		fields = append(fields, zap.String("traceId", event.TraceID))
	}

	msg := string(event.Type)
	s.logger.Log(severityLevel(event.Severity), msg, fields...)
	return nil
}

// Close flushes the underlying logger.
func (s *Zap) Close(context.Context) error {
	// Sync on stderr-backed cores returns ENOTTY; the error carries no signal.
	_ = s.logger.Sync()
	return nil
}

func severityLevel(severity logging.Severity) zapcore.Level {
	switch severity {
	case logging.SeverityDebug:
		return zapcore.DebugLevel
	case logging.SeverityWarn:
		return zapcore.WarnLevel
	case logging.SeverityError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
