package domain

import (
	"strconv"
	"strings"
	"time"
)

// TrackedResource is a page registered by a single owner.
type TrackedResource struct {
	ID              int64
	OwnerID         string
	URL             string
	Rule            string
	LastFingerprint *string
	LastCheckedAt   *time.Time
	CreatedAt       time.Time
}

// Key identifies the resource for locking purposes.
func (r TrackedResource) Key() string {
	return r.OwnerID + "|" + r.URL
}

// HasBaseline reports whether a fingerprint has been recorded yet.
func (r TrackedResource) HasBaseline() bool {
	return r.LastFingerprint != nil
}

// SourceKind tells where fetched content came from.
type SourceKind string

const (
	SourceDirect     SourceKind = "direct"
	SourceMirrorFeed SourceKind = "mirror-feed"
)

// FeedEntry is the newest entry of a mirror feed.
type FeedEntry struct {
	Link  string
	Title string
}

// FetchResult is the transient output of the fetcher.
type FetchResult struct {
	Raw        []byte
	SourceKind SourceKind
	Status     int
	FinalURL   string
	Entry      *FeedEntry
}

// CheckOutcome reports what a single check did.
type CheckOutcome struct {
	Resource            TrackedResource
	PreviousFingerprint *string
	NewFingerprint      *string
	Changed             bool
	Event               *Event
	Err                 error
}

// Selector addresses a resource for removal: either a 1-based position in the
// owner's current listing or an exact URL.
type Selector struct {
	Position int
	URL      string
}

// ParseSelector treats all-digit input as a position and anything else as a URL.
func ParseSelector(raw string) Selector {
	raw = strings.TrimSpace(raw)
	if raw != "" && strings.Trim(raw, "0123456789") == "" {
		if pos, err := strconv.Atoi(raw); err == nil {
			return Selector{Position: pos}
		}
	}
	return Selector{URL: raw}
}

// ByPosition reports whether the selector addresses a list position.
func (s Selector) ByPosition() bool {
	return s.URL == ""
}

func (s Selector) String() string {
	if s.ByPosition() {
		return "#" + strconv.Itoa(s.Position)
	}
	return s.URL
}

// Pick resolves the selector against a listing snapshot.
func (s Selector) Pick(list []TrackedResource) (TrackedResource, bool) {
	if s.ByPosition() {
		if s.Position < 1 || s.Position > len(list) {
			return TrackedResource{}, false
		}
		return list[s.Position-1], true
	}
	for _, res := range list {
		if res.URL == s.URL {
			return res, true
		}
	}
	return TrackedResource{}, false
}
