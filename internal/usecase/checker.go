package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"PageWatcher/internal/domain"
	"PageWatcher/internal/fingerprint"
	"PageWatcher/internal/metrics"
	"PageWatcher/internal/ports"
)

const defaultNotifyTimeout = 10 * time.Second

// CheckerDeps wires all driven adapters into the change-detection workflow.
type CheckerDeps struct {
	Registry      ports.ResourceRegistry
	Fetcher       ports.Fetcher
	Extractor     ports.Extractor
	Notifier      ports.Notifier
	Locker        ports.Locker
	Pacer         ports.Pacer
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	NotifyTimeout time.Duration
	Now           func() time.Time
}

// Checker fetches tracked resources, detects content changes and notifies
// owners. Resources are processed sequentially; one resource's failure never
// stops the others.
type Checker struct {
	registry      ports.ResourceRegistry
	fetcher       ports.Fetcher
	extractor     ports.Extractor
	notifier      ports.Notifier
	locker        ports.Locker
	pacer         ports.Pacer
	metrics       *metrics.Metrics
	log           *slog.Logger
	notifyTimeout time.Duration
	now           func() time.Time

	running atomic.Bool
}

type checkMode int

const (
	modeBatch checkMode = iota
	modeOnDemand
)

// NewChecker constructs the orchestration component.
func NewChecker(deps CheckerDeps) *Checker {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	timeout := deps.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &Checker{
		registry:      deps.Registry,
		fetcher:       deps.Fetcher,
		extractor:     deps.Extractor,
		notifier:      deps.Notifier,
		locker:        deps.Locker,
		pacer:         deps.Pacer,
		metrics:       deps.Metrics,
		log:           log.With("component", "checker"),
		notifyTimeout: timeout,
		now:           now,
	}
}

// CheckAll runs one batch cycle over every resource of non-paused owners.
// Unchanged resources produce no event. A trigger that arrives while a cycle
// is running returns ErrCycleInProgress.
func (c *Checker) CheckAll(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		c.metrics.ObserveCycle("skipped", 0)
		return domain.ErrCycleInProgress
	}
	defer c.running.Store(false)

	start := c.now()
	resources, err := c.registry.ListActive(ctx)
	if err != nil {
		c.metrics.ObserveCycle("failed", 0)
		return fmt.Errorf("list resources: %w", err)
	}

	c.log.InfoContext(ctx, "Batch cycle started", "resources", len(resources))

	gone := map[string]bool{}
	var failed int
	for _, res := range resources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if gone[res.OwnerID] {
			continue
		}
		outcome, ownerGone := c.check(ctx, res, modeBatch)
		if ownerGone {
			gone[res.OwnerID] = true
		}
		if outcome.Err != nil {
			failed++
		}
	}

	elapsed := c.now().Sub(start)
	c.metrics.ObserveCycle("completed", elapsed)
	c.log.InfoContext(ctx, "Batch cycle finished", "resources", len(resources), "failed", failed, "duration", elapsed)
	return nil
}

// CheckOwner checks every resource of one owner immediately and reports an
// outcome per resource, emitting NoChange for unchanged ones. Paused owners
// are still checked.
func (c *Checker) CheckOwner(ctx context.Context, ownerID string) ([]domain.CheckOutcome, error) {
	resources, err := c.registry.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}

	outcomes := make([]domain.CheckOutcome, 0, len(resources))
	for _, res := range resources {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		outcome, ownerGone := c.check(ctx, res, modeOnDemand)
		outcomes = append(outcomes, outcome)
		if ownerGone {
			break
		}
	}
	return outcomes, nil
}

// check runs fetch, extract, fingerprint, compare, persist and notify for one
// resource under its lock. The second result reports that the owner's
// recipient is gone and its resources were dropped.
func (c *Checker) check(ctx context.Context, ref domain.TrackedResource, mode checkMode) (domain.CheckOutcome, bool) {
	start := time.Now()
	outcome := domain.CheckOutcome{Resource: ref}
	log := c.log.With("owner", ref.OwnerID, "url", ref.URL)

	release, err := c.locker.Acquire(ctx, ref.Key())
	if err != nil {
		if ctx.Err() != nil {
			outcome.Err = err
			return outcome, false
		}
		return c.fail(ctx, log, outcome, fmt.Errorf("acquire lock: %w", err), start)
	}
	defer release()

	// Reload under the lock so a concurrent check's fingerprint is seen.
	res, err := c.registry.Get(ctx, ref.OwnerID, ref.URL)
	if errors.Is(err, domain.ErrNotFound) {
		outcome.Err = err
		log.DebugContext(ctx, "Resource removed before check")
		return outcome, false
	}
	if err != nil {
		return c.fail(ctx, log, outcome, fmt.Errorf("load resource: %w", err), start)
	}
	outcome.Resource = res
	outcome.PreviousFingerprint = res.LastFingerprint

	if c.pacer != nil {
		if err := c.pacer.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				outcome.Err = err
				return outcome, false
			}
			return c.fail(ctx, log, outcome, fmt.Errorf("pace request: %w", err), start)
		}
	}

	result, err := c.fetcher.Fetch(ctx, res.URL)
	if err != nil {
		return c.fail(ctx, log, outcome, err, start)
	}

	content, err := c.extractor.Extract(res.URL, result, res.Rule)
	if err != nil {
		return c.fail(ctx, log, outcome, fmt.Errorf("extract: %w", err), start)
	}

	fp := fingerprint.Of(content)
	outcome.NewFingerprint = &fp
	checkedAt := c.now()

	err = c.registry.RecordResult(ctx, res.OwnerID, res.URL, fp, checkedAt)
	if errors.Is(err, domain.ErrNotFound) {
		outcome.Err = err
		outcome.NewFingerprint = nil
		log.DebugContext(ctx, "Resource removed during check")
		return outcome, false
	}
	if err != nil {
		return c.fail(ctx, log, outcome, fmt.Errorf("record result: %w", err), start)
	}

	var (
		event      *domain.Event
		metricName string
	)
	switch {
	case !res.HasBaseline():
		e := domain.TrackingStarted(res.URL, checkedAt)
		event, metricName = &e, metrics.OutcomeStarted
	case !fingerprint.Equal(res.LastFingerprint, fp):
		outcome.Changed = true
		e := domain.Changed(res.URL, checkedAt)
		event, metricName = &e, metrics.OutcomeChanged
		log.InfoContext(ctx, "Change detected")
	default:
		metricName = metrics.OutcomeUnchanged
		if mode == modeOnDemand {
			e := domain.NoChange(res.URL, checkedAt)
			event = &e
		}
	}
	c.metrics.ObserveCheck(metricName, time.Since(start))

	outcome.Event = event
	if event == nil {
		return outcome, false
	}
	return outcome, c.notify(ctx, log, res.OwnerID, *event)
}

// fail reports err to the owner as CheckFailed. Stored state is left as is.
func (c *Checker) fail(ctx context.Context, log *slog.Logger, outcome domain.CheckOutcome, err error, start time.Time) (domain.CheckOutcome, bool) {
	outcome.Err = err
	outcome.Changed = false
	c.metrics.ObserveCheck(metrics.OutcomeFailed, time.Since(start))

	if errors.Is(err, domain.ErrPersistence) {
		log.ErrorContext(ctx, "Check failed", "error", err)
	} else {
		log.WarnContext(ctx, "Check failed", "error", err)
	}

	event := domain.CheckFailed(outcome.Resource.URL, c.now(), reason(err))
	outcome.Event = &event
	return outcome, c.notify(ctx, log, outcome.Resource.OwnerID, event)
}

func (c *Checker) notify(ctx context.Context, log *slog.Logger, ownerID string, event domain.Event) bool {
	if c.notifier == nil {
		return false
	}

	notifyCtx, cancel := context.WithTimeout(ctx, c.notifyTimeout)
	defer cancel()

	err := c.notifier.Notify(notifyCtx, ownerID, event)
	c.metrics.ObserveNotification(string(event.Kind), err)
	if err == nil {
		return false
	}

	if !errors.Is(err, domain.ErrRecipientGone) {
		log.WarnContext(ctx, "Notification failed", "kind", event.Kind, "error", err)
		return false
	}

	log.InfoContext(ctx, "Recipient gone, dropping owner", "error", err)
	if rmErr := c.registry.RemoveOwner(ctx, ownerID); rmErr != nil {
		log.ErrorContext(ctx, "Failed to drop owner", "error", rmErr)
	}
	return true
}

func reason(err error) string {
	var fetchErr *domain.FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.Kind {
		case domain.FetchHTTPStatus:
			return fmt.Sprintf("HTTP status %d", fetchErr.StatusCode)
		case domain.FetchTimeout:
			return "request timed out"
		default:
			if fetchErr.Err == nil {
				return "network error"
			}
			return "network error: " + unwrapAll(fetchErr.Err).Error()
		}
	}
	if errors.Is(err, domain.ErrPersistence) {
		return "storage unavailable"
	}
	return err.Error()
}

func unwrapAll(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
