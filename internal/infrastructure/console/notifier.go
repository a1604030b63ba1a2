// Package console writes events to the process log when no messaging
// transport is configured.
package console

import (
	"context"
	"log/slog"

	"PageWatcher/internal/domain"
	"PageWatcher/internal/ports"
)

// Notifier logs every event at info level.
type Notifier struct {
	log *slog.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

func NewNotifier(log *slog.Logger) *Notifier {
	return &Notifier{log: log.With("component", "console-notifier")}
}

func (n *Notifier) Notify(ctx context.Context, ownerID string, event domain.Event) error {
	attrs := []any{"owner", ownerID, "kind", event.Kind, "url", event.URL, "at", event.At}
	if event.Reason != "" {
		attrs = append(attrs, "reason", event.Reason)
	}
	n.log.InfoContext(ctx, "Event", attrs...)
	return nil
}
