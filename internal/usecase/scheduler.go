package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"PageWatcher/internal/domain"
	"PageWatcher/internal/ports"
)

// Scheduler wires the cron-like driver with the batch checker.
type Scheduler struct {
	driver  ports.Scheduler
	checker *Checker
	log     *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring batch cycles.
func NewScheduler(driver ports.Scheduler, checker *Checker, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{driver: driver, checker: checker, log: log.With("component", "scheduler")}
}

// Start registers the batch cycle with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.checker == nil {
		return nil
	}

	job := func(trigger time.Time) {
		err := s.checker.CheckAll(ctx)
		switch {
		case errors.Is(err, domain.ErrCycleInProgress):
			s.log.WarnContext(ctx, "Previous cycle still running, tick skipped", "trigger", trigger)
		case err != nil && ctx.Err() == nil:
			s.log.ErrorContext(ctx, "Batch cycle failed", "trigger", trigger, "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
