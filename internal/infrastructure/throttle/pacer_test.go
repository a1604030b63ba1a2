package throttle

import (
	"context"
	"errors"
	"testing"
	"time"

	"PageWatcher/internal/config"
)

func TestPacerFirstWaitIsImmediate(t *testing.T) {
	t.Parallel()

	p := New(config.SchedulerConfig{MinDelay: time.Hour, MaxDelay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := p.Wait(ctx); err != nil {
		t.Fatalf("first wait should not block: %v", err)
	}
}

func TestPacerSpacesConsecutiveFetches(t *testing.T) {
	t.Parallel()

	p := New(config.SchedulerConfig{MinDelay: 30 * time.Millisecond, MaxDelay: 30 * time.Millisecond})
	ctx := context.Background()

	if err := p.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	start := time.Now()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("expected a gap of about 30ms, got %s", elapsed)
	}
}

func TestPacerHonorsContext(t *testing.T) {
	t.Parallel()

	p := New(config.SchedulerConfig{MinDelay: time.Hour, MaxDelay: time.Hour})
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestPacerGapWithinBounds(t *testing.T) {
	t.Parallel()

	p := New(config.SchedulerConfig{MinDelay: time.Second, MaxDelay: 3 * time.Second})
	for range 100 {
		gap := p.nextGap()
		if gap < time.Second || gap > 3*time.Second {
			t.Fatalf("gap %s outside [1s, 3s]", gap)
		}
	}

	fixed := New(config.SchedulerConfig{MinDelay: 2 * time.Second, MaxDelay: time.Second})
	if gap := fixed.nextGap(); gap != 2*time.Second {
		t.Fatalf("max below min should collapse to min, got %s", gap)
	}
}
