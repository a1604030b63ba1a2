package ports

import (
	"context"
	"time"

	"PageWatcher/internal/domain"
)

// ResourceRegistry is the durable store of tracked resources.
type ResourceRegistry interface {
	// Register adds the resource; created is false when it already existed.
	Register(ctx context.Context, ownerID, url, rule string) (created bool, err error)
	Get(ctx context.Context, ownerID, url string) (domain.TrackedResource, error)
	// List returns the owner's resources in registration order.
	List(ctx context.Context, ownerID string) ([]domain.TrackedResource, error)
	// ListActive returns resources of every non-paused owner.
	ListActive(ctx context.Context) ([]domain.TrackedResource, error)
	Remove(ctx context.Context, ownerID string, sel domain.Selector) (domain.TrackedResource, error)
	// RecordResult stores the outcome of a successful check.
	RecordResult(ctx context.Context, ownerID, url, fingerprint string, checkedAt time.Time) error
	SetPaused(ctx context.Context, ownerID string, paused bool) error
	RemoveOwner(ctx context.Context, ownerID string) error
}

// Fetcher retrieves raw content for a URL, via mirrors when the domain has them.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (domain.FetchResult, error)
}

// Extractor reduces raw content to the comparison-relevant text.
type Extractor interface {
	Extract(url string, result domain.FetchResult, rule string) (string, error)
}

// Notifier pushes an event to the messaging transport.
type Notifier interface {
	Notify(ctx context.Context, ownerID string, event domain.Event) error
}

// Locker serializes checks of the same resource.
type Locker interface {
	// Acquire blocks until the key is held or ctx is done; release must be called exactly once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Pacer throttles consecutive external fetches.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Scheduler controls when batch cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
