// Package notify holds the outbound notification port. Delivery
// notifications are best-effort: a failure is logged, never propagated
// into the workflow.
package notify

import (
	"context"
	"log/slog"
)

// Notification is the payload for a delivery notice.
type Notification struct {
	TrackingNumber string
	RequestNumber  string
	Recipient      string
}

// Notifier sends delivery notices.
type Notifier interface {
	DeliveryReady(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log. Stands in for the mail
// integration in environments without an SMTP relay.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l *LogNotifier) DeliveryReady(ctx context.Context, n Notification) error {
	l.Logger.InfoContext(ctx, "delivery notification",
		"tracking_number", n.TrackingNumber,
		"request_number", n.RequestNumber,
	)
	return nil
}
