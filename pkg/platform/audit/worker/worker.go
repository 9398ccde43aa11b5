package worker

import (
	"context"
	"log/slog"

	"etatcivil/pkg/platform/audit"
	"etatcivil/pkg/platform/audit/publisher"
)

// Worker drains audit events from a channel and hands them to the
// publisher. It decouples domain transitions from sink latency; a publish
// failure is logged and the event dropped rather than blocking the
// workflow that emitted it.
type Worker struct {
	publisher publisher.Publisher
	inbox     <-chan audit.Event
	logger    *slog.Logger
}

func New(pub publisher.Publisher, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{publisher: pub, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.publisher.Publish(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit publish failed",
					"action", string(event.Action),
					"subject", event.Subject,
					"error", err.Error(),
				)
			}
		}
	}
}

// Emitter is the producing side handed to services. Send never blocks:
// when the inbox is full the event is published synchronously as a last
// resort so critical events (refund failures) are not lost silently.
type Emitter struct {
	inbox  chan<- audit.Event
	direct publisher.Publisher
	logger *slog.Logger
}

func NewEmitter(inbox chan<- audit.Event, direct publisher.Publisher, logger *slog.Logger) *Emitter {
	return &Emitter{inbox: inbox, direct: direct, logger: logger}
}

func (e *Emitter) Emit(ctx context.Context, event audit.Event) {
	select {
	case e.inbox <- event:
	default:
		if err := e.direct.Publish(ctx, event); err != nil {
			e.logger.ErrorContext(ctx, "audit publish failed",
				"action", string(event.Action),
				"subject", event.Subject,
				"error", err.Error(),
			)
		}
	}
}
