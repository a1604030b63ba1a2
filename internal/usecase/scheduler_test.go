package usecase

import (
	"context"
	"testing"
	"time"

	"PageWatcher/internal/domain"
	"PageWatcher/internal/infrastructure/storage"
)

type manualDriver struct {
	job     func(time.Time)
	stopped bool
}

func (d *manualDriver) Start(_ context.Context, job func(time.Time)) error {
	d.job = job
	return nil
}

func (d *manualDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerRunsBatchCycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, storage.NewMemoryRepository())
	h.register(t, "42", "https://example.com", "content")

	driver := &manualDriver{}
	s := NewScheduler(driver, h.checker, nil)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if driver.job == nil {
		t.Fatal("job was not registered")
	}

	driver.job(fixedNow)
	events := h.notifier.take()
	if len(events) != 1 || events[0].event.Kind != domain.EventTrackingStarted {
		t.Fatalf("tick must run a batch cycle, got %+v", events)
	}

	if err := s.Stop(ctx); err != nil || !driver.stopped {
		t.Fatalf("Stop() error = %v stopped=%v", err, driver.stopped)
	}
}

func TestSchedulerWithoutDriver(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, nil, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}
