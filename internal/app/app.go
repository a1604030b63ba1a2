package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"PageWatcher/internal/config"
	"PageWatcher/internal/infrastructure/console"
	"PageWatcher/internal/infrastructure/extractor"
	"PageWatcher/internal/infrastructure/fetcher"
	"PageWatcher/internal/infrastructure/httpapi"
	"PageWatcher/internal/infrastructure/lock"
	"PageWatcher/internal/infrastructure/scheduler"
	"PageWatcher/internal/infrastructure/storage"
	"PageWatcher/internal/infrastructure/telegram"
	"PageWatcher/internal/infrastructure/throttle"
	"PageWatcher/internal/logging"
	"PageWatcher/internal/metrics"
	"PageWatcher/internal/ports"
	"PageWatcher/internal/rules"
	"PageWatcher/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	log       *slog.Logger
	registry  ports.ResourceRegistry
	closers   []func() error
	prom      *prometheus.Registry
	tracker   *usecase.Tracker
	checker   *usecase.Checker
	scheduler *usecase.Scheduler
}

// Options replaces adapters, mainly for tests. Zero values use the configured ones.
type Options struct {
	Registry   ports.ResourceRegistry
	Notifier   ports.Notifier
	HTTPClient *http.Client
}

// New builds the application from cfg. Close must be called when done.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging)
	}
	a := &Application{cfg: cfg, log: baseLogger}

	table, err := rules.BuildTable(rules.NewDefaultRegistry(), cfg.Domains)
	if err != nil {
		return nil, fmt.Errorf("build domain rules: %w", err)
	}
	if err := scheduler.Validate(cfg.Scheduler.Spec()); err != nil {
		return nil, err
	}

	a.registry = opts.Registry
	if a.registry == nil {
		reg, closeFn, err := storage.NewRegistry(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.registry = reg
		a.closers = append(a.closers, closeFn)
	}

	locker, err := a.newLocker(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = a.newNotifier()
	}

	a.prom = prometheus.NewRegistry()
	a.prom.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(a.prom)

	a.checker = usecase.NewChecker(usecase.CheckerDeps{
		Registry:      a.registry,
		Fetcher:       fetcher.New(opts.HTTPClient, table, cfg.Fetcher, baseLogger.With("component", "fetcher")),
		Extractor:     extractor.New(table, cfg.Extractor),
		Notifier:      notifier,
		Locker:        locker,
		Pacer:         throttle.New(cfg.Scheduler),
		Metrics:       m,
		Logger:        baseLogger,
		NotifyTimeout: cfg.Notifications.Timeout,
	})
	a.tracker = usecase.NewTracker(a.registry, extractor.ValidateSelector, baseLogger)
	a.scheduler = usecase.NewScheduler(
		scheduler.NewCronScheduler(cfg.Scheduler.Spec(), baseLogger),
		a.checker,
		baseLogger,
	)

	return a, nil
}

func (a *Application) newLocker(ctx context.Context) (ports.Locker, error) {
	if a.cfg.Redis.Addr == "" {
		return lock.NewKeyedMutex(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", a.cfg.Redis.Addr, err)
	}
	a.closers = append(a.closers, client.Close)
	a.log.Info("Using redis resource leases", "addr", a.cfg.Redis.Addr)
	return lock.NewRedisLease(client, a.cfg.Redis.LockTTL, a.log.With("component", "lock")), nil
}

func (a *Application) newNotifier() ports.Notifier {
	if a.cfg.Notifications.Telegram.BotToken == "" {
		a.log.Warn("Telegram bot token not set, events go to the log")
		return console.NewNotifier(a.log)
	}
	return telegram.NewNotifier(a.cfg.Notifications, nil)
}

// Tracker exposes registration operations.
func (a *Application) Tracker() *usecase.Tracker { return a.tracker }

// Checker exposes batch and on-demand checks.
func (a *Application) Checker() *usecase.Checker { return a.checker }

type versioned interface {
	SchemaVersion() (uint, bool, error)
}

// SchemaVersion reports the applied migration version of SQL storage. ok is
// false for drivers without a schema.
func (a *Application) SchemaVersion() (version uint, dirty bool, ok bool, err error) {
	v, isVersioned := a.registry.(versioned)
	if !isVersioned {
		return 0, false, false, nil
	}
	version, dirty, err = v.SchemaVersion()
	return version, dirty, true, err
}

// Handler returns the HTTP API backed by this application.
func (a *Application) Handler() http.Handler {
	return httpapi.NewRouter(a.tracker, a.checker, a.prom, a.log)
}

// Run starts the batch scheduler and, when configured, the HTTP API, then
// blocks until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	var server *httpapi.Server
	if a.cfg.HTTP.Addr != "" {
		server = httpapi.NewServer(a.cfg.HTTP.Addr, a.Handler(), a.log)
		if err := server.Start(); err != nil {
			_ = a.scheduler.Stop(context.Background())
			return err
		}
	}

	<-ctx.Done()
	a.log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if server != nil {
		errs = append(errs, server.Shutdown(shutdownCtx))
	}
	errs = append(errs, a.scheduler.Stop(shutdownCtx))
	return errors.Join(errs...)
}

// Close releases storage and redis connections.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
