// Package fetcher retrieves tracked pages, preferring syndication mirrors for
// domains that are unreliable to scrape.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mmcdole/gofeed"

	"PageWatcher/internal/config"
	"PageWatcher/internal/domain"
	"PageWatcher/internal/ports"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultMaxBytes  = 5 << 20
	defaultUserAgent = "PageWatcher/1.0"
	httpPrefix       = "http"
)

// MirrorSource maps a page URL to feed endpoints, best first.
type MirrorSource interface {
	Mirrors(rawURL string) []string
}

// HTTPFetcher implements ports.Fetcher over net/http.
type HTTPFetcher struct {
	client   *http.Client
	mirrors  MirrorSource
	timeout  time.Duration
	maxBytes int64
	agents   []string
	next     atomic.Uint64
	logger   *slog.Logger
}

var _ ports.Fetcher = (*HTTPFetcher)(nil)

// New wires an HTTP client; a nil client gets a plain one, nil mirrors disables feeds.
func New(client *http.Client, mirrors MirrorSource, cfg config.FetcherConfig, log *slog.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	agents := cfg.UserAgents
	if len(agents) == 0 {
		agents = []string{defaultUserAgent}
	}
	f := &HTTPFetcher{
		client:   client,
		mirrors:  mirrors,
		timeout:  cfg.Timeout,
		maxBytes: cfg.MaxBytes,
		agents:   agents,
		logger:   log,
	}
	f.next.Store(uint64(rand.IntN(len(agents))))
	return f
}

// Fetch tries every mirror in order and falls back to the page itself.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (domain.FetchResult, error) {
	var mirrors []string
	if f.mirrors != nil {
		mirrors = f.mirrors.Mirrors(rawURL)
	}

	for _, mirrorURL := range mirrors {
		result, err := f.fetchFeed(ctx, mirrorURL)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return domain.FetchResult{}, classify(ctx.Err(), rawURL)
		}
		f.debug("mirror failed, trying next", "url", rawURL, "mirror", mirrorURL, "error", err)
	}

	return f.fetchDirect(ctx, rawURL)
}

func (f *HTTPFetcher) fetchDirect(ctx context.Context, rawURL string) (domain.FetchResult, error) {
	body, resp, err := f.get(ctx, rawURL)
	if err != nil {
		return domain.FetchResult{}, err
	}
	return domain.FetchResult{
		Raw:        body,
		SourceKind: domain.SourceDirect,
		Status:     resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
	}, nil
}

func (f *HTTPFetcher) fetchFeed(ctx context.Context, feedURL string) (domain.FetchResult, error) {
	body, resp, err := f.get(ctx, feedURL)
	if err != nil {
		return domain.FetchResult{}, err
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return domain.FetchResult{}, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	entry, ok := latestEntry(parsed.Items)
	if !ok {
		return domain.FetchResult{}, fmt.Errorf("feed %s has no entries", feedURL)
	}

	return domain.FetchResult{
		Raw:        body,
		SourceKind: domain.SourceMirrorFeed,
		Status:     resp.StatusCode,
		FinalURL:   feedURL,
		Entry:      &entry,
	}, nil
}

// get performs one bounded attempt and returns the capped body.
func (f *HTTPFetcher) get(ctx context.Context, rawURL string) ([]byte, *http.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, nil, &domain.FetchError{Kind: domain.FetchNetwork, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.nextAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/rss+xml,application/atom+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, classify(err, rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp, &domain.FetchError{
			Kind:       domain.FetchHTTPStatus,
			StatusCode: resp.StatusCode,
			URL:        rawURL,
			Err:        fmt.Errorf("%s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, resp, classify(err, rawURL)
	}
	return body, resp, nil
}

func (f *HTTPFetcher) nextAgent() string {
	i := f.next.Add(1)
	return f.agents[i%uint64(len(f.agents))]
}

func (f *HTTPFetcher) debug(msg string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}

// classify converts transport errors into FetchErrors.
func classify(err error, rawURL string) *domain.FetchError {
	var fetchErr *domain.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.FetchError{Kind: domain.FetchTimeout, URL: rawURL, Err: err}
	}
	return &domain.FetchError{Kind: domain.FetchNetwork, URL: rawURL, Err: err}
}

// latestEntry picks the most recently published item; feeds without dates
// keep their own order.
func latestEntry(items []*gofeed.Item) (domain.FeedEntry, bool) {
	var (
		best     *gofeed.Item
		bestTime time.Time
	)
	for _, item := range items {
		if item == nil || (itemLink(item) == "" && strings.TrimSpace(item.Title) == "") {
			continue
		}
		ts := itemTime(item)
		if best == nil || ts.After(bestTime) {
			best, bestTime = item, ts
		}
	}
	if best == nil {
		return domain.FeedEntry{}, false
	}
	return domain.FeedEntry{Link: itemLink(best), Title: strings.TrimSpace(best.Title)}, true
}

func itemLink(item *gofeed.Item) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}
	if strings.HasPrefix(item.GUID, httpPrefix) {
		return item.GUID
	}
	return ""
}

func itemTime(item *gofeed.Item) time.Time {
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	return time.Time{}
}
