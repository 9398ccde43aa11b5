package publisher

import (
	"context"
	"log/slog"

	"etatcivil/pkg/platform/audit"
)

// LogPublisher writes audit events to the structured log. It is the
// deployment fallback when no Kafka brokers are configured, and the
// default in tests.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event audit.Event) error {
	level := slog.LevelInfo
	switch event.Severity {
	case audit.SeverityWarning:
		level = slog.LevelWarn
	case audit.SeverityCritical:
		level = slog.LevelError
	}
	p.logger.LogAttrs(ctx, level, "audit",
		slog.String("action", string(event.Action)),
		slog.String("subject", event.Subject),
		slog.String("agent_id", agentString(event)),
		slog.String("reason", event.Reason),
		slog.String("request_id", event.RequestID),
		slog.Time("timestamp", event.Timestamp),
	)
	return nil
}

func (p *LogPublisher) Close() {}
