package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	// KindValueChanged is emitted when the owner updates the configuration value.
	KindValueChanged = "ValueChanged"
	// KindDeposited is emitted when native value is credited to an account.
	KindDeposited = "Deposited"
	// KindWithdrawn is emitted when the owner moves native value out of custody.
	KindWithdrawn = "Withdrawn"
)

// Event is an append-only record of a custody state change.
type Event struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Account    string    `json:"account,omitempty"`
	Amount     int64     `json:"amount"`
	Value      int64     `json:"value"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier delivers events to downstream systems.
type Notifier interface {
	Send(ctx context.Context, event Event) error
}

// Journal is a Notifier that also keeps events for later reads.
type Journal interface {
	Notifier
	// Recent returns up to limit of the newest events, oldest first.
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// LoggerNotifier writes events to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the event to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, event Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("event_id", event.ID),
		slog.String("kind", event.Kind),
		slog.String("account", event.Account),
		slog.Int64("amount", event.Amount),
		slog.Int64("value", event.Value),
	)
	return nil
}

// Fanout delivers every event to each notifier, continuing past failures.
type Fanout []Notifier

// Send forwards the event and joins the errors of failed deliveries.
func (f Fanout) Send(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
