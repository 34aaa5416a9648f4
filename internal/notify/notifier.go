// Package notify pushes keeper events to operator channels (Telegram,
// Discord). Delivery is best-effort: a failing channel never affects the
// execution path.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Keeper event types usable in the notify allow-list.
const (
	EventKeeperStarted    = "keeper_started"
	EventKeeperStopped    = "keeper_stopped"
	EventOrderExecuted    = "order_executed"
	EventExecutionFailed  = "execution_failed"
	EventExecutionTimeout = "execution_timeout"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans an event out to all configured senders, filtered by an
// allow-list of event types. An empty allow-list passes everything.
type Notifier struct {
	senders []Sender
	allowed map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to senders. events is the
// allow-list; empty means all events.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers the event to every sender if it passes the allow-list.
// Individual sender failures are logged and collected; one failing channel
// does not block the others.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.allowed) > 0 && !n.allowed[event] {
		return nil
	}
	if len(n.senders) == 0 {
		return nil
	}

	var failed []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "notification send failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			failed = append(failed, s.Name())
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("notify: senders failed: %s", strings.Join(failed, ", "))
	}
	return nil
}
