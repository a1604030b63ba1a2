package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"PageWatcher/internal/domain"
	"PageWatcher/internal/ports"
)

// Listing is one row of an owner's resource list. Position is 1-based and
// only valid for the snapshot it came from.
type Listing struct {
	Position      int
	URL           string
	Rule          string
	LastCheckedAt *time.Time
}

// Tracker handles registration requests coming from the transport layer.
type Tracker struct {
	registry         ports.ResourceRegistry
	validateSelector func(string) error
	log              *slog.Logger
}

// NewTracker builds the registration use case. validateSelector may be nil.
func NewTracker(registry ports.ResourceRegistry, validateSelector func(string) error, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		registry:         registry,
		validateSelector: validateSelector,
		log:              log.With("component", "tracker"),
	}
}

// Register starts tracking rawURL for the owner. created is false when the
// owner already tracks that URL; the stored resource is left untouched.
func (t *Tracker) Register(ctx context.Context, ownerID, rawURL, rule string) (bool, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return false, fmt.Errorf("%w: empty owner", domain.ErrInvalidResource)
	}

	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return false, err
	}

	rule = strings.TrimSpace(rule)
	if rule != "" && t.validateSelector != nil {
		if err := t.validateSelector(rule); err != nil {
			return false, err
		}
	}

	created, err := t.registry.Register(ctx, ownerID, normalized, rule)
	if err != nil {
		return false, fmt.Errorf("register %s: %w", normalized, err)
	}
	if created {
		t.log.InfoContext(ctx, "Resource registered", "owner", ownerID, "url", normalized, "rule", rule)
	}
	return created, nil
}

// List returns the owner's resources in registration order.
func (t *Tracker) List(ctx context.Context, ownerID string) ([]Listing, error) {
	resources, err := t.registry.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", ownerID, err)
	}

	out := make([]Listing, 0, len(resources))
	for i, res := range resources {
		out = append(out, Listing{
			Position:      i + 1,
			URL:           res.URL,
			Rule:          res.Rule,
			LastCheckedAt: res.LastCheckedAt,
		})
	}
	return out, nil
}

// Remove deletes the resource addressed by a 1-based position or an exact URL.
func (t *Tracker) Remove(ctx context.Context, ownerID, positionOrURL string) (domain.TrackedResource, error) {
	sel := domain.ParseSelector(positionOrURL)
	removed, err := t.registry.Remove(ctx, ownerID, sel)
	if err != nil {
		return domain.TrackedResource{}, fmt.Errorf("remove %s: %w", sel, err)
	}
	t.log.InfoContext(ctx, "Resource removed", "owner", ownerID, "url", removed.URL)
	return removed, nil
}

// Pause excludes the owner's resources from batch cycles.
func (t *Tracker) Pause(ctx context.Context, ownerID string) error {
	if err := t.registry.SetPaused(ctx, ownerID, true); err != nil {
		return fmt.Errorf("pause %s: %w", ownerID, err)
	}
	return nil
}

// Resume re-enables batch cycles for the owner.
func (t *Tracker) Resume(ctx context.Context, ownerID string) error {
	if err := t.registry.SetPaused(ctx, ownerID, false); err != nil {
		return fmt.Errorf("resume %s: %w", ownerID, err)
	}
	return nil
}

// NormalizeURL accepts absolute http(s) URLs with a host and returns them trimmed.
func NormalizeURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty url", domain.ErrInvalidResource)
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidResource, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidResource, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host", domain.ErrInvalidResource)
	}
	return trimmed, nil
}
