package logger

import (
	"log"
	"log/slog"
)

// New returns a stdlib logger that forwards lines to base tagged with component.
// Libraries such as cron only accept Printf-style loggers.
func New(component string, base *slog.Logger) *log.Logger {
	if base == nil {
		base = slog.Default()
	}
	return slog.NewLogLogger(base.With("component", component).Handler(), slog.LevelInfo)
}
