package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"PageWatcher/internal/config"
	"PageWatcher/internal/domain"
)

type collectingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (n *collectingNotifier) Notify(_ context.Context, _ string, event domain.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *collectingNotifier) take() []domain.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.events
	n.events = nil
	return out
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Storage = config.StorageConfig{Driver: config.DriverMemory}
	cfg.Scheduler.MinDelay = 0
	cfg.Scheduler.MaxDelay = 0
	cfg.Scheduler.RatePerSecond = 0
	cfg.Fetcher.Timeout = 2 * time.Second
	return cfg
}

func TestApplicationDetectsChanges(t *testing.T) {
	t.Parallel()

	var version atomic.Int32
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if version.Load() == 0 {
			_, _ = io.WriteString(w, `<html><body><main>Price: 10</main><footer>2026</footer></body></html>`)
			return
		}
		_, _ = io.WriteString(w, `<html><body><main>Price: 12</main><footer>2026</footer></body></html>`)
	}))
	defer site.Close()

	ctx := context.Background()
	notifier := &collectingNotifier{}
	a, err := New(ctx, testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), Options{Notifier: notifier})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = a.Close() }()

	if _, err := a.Tracker().Register(ctx, "42", site.URL, "main"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := a.Checker().CheckAll(ctx); err != nil {
		t.Fatalf("CheckAll() error = %v", err)
	}
	if events := notifier.take(); len(events) != 1 || events[0].Kind != domain.EventTrackingStarted {
		t.Fatalf("expected TrackingStarted, got %+v", events)
	}

	version.Store(1)
	if err := a.Checker().CheckAll(ctx); err != nil {
		t.Fatalf("CheckAll() error = %v", err)
	}
	events := notifier.take()
	if len(events) != 1 || events[0].Kind != domain.EventChanged || events[0].URL != site.URL {
		t.Fatalf("expected Changed, got %+v", events)
	}

	outcomes, err := a.Checker().CheckOwner(ctx, "42")
	if err != nil {
		t.Fatalf("CheckOwner() error = %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Event == nil || outcomes[0].Event.Kind != domain.EventNoChange {
		t.Fatalf("expected NoChange outcome, got %+v", outcomes)
	}
}

func TestApplicationHandler(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), Options{Notifier: &collectingNotifier{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = a.Close() }()

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/owners/42/resources", "application/json", strings.NewReader(`{"url":"https://example.com"}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatal("metrics endpoint should expose runtime collectors")
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Scheduler.CronExpression = "every tuesday"
	if _, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{}); err == nil {
		t.Fatal("expected schedule validation error")
	}
}

func TestNewRejectsUnknownMirror(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Domains = []config.DomainConfig{{Suffix: "example.com", Mirror: "gopher"}}
	if _, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{}); err == nil {
		t.Fatal("expected unknown mirror error")
	}
}
