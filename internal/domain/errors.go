package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidResource rejects a malformed URL or selector at registration.
	ErrInvalidResource = errors.New("invalid resource")
	// ErrFetchFailure wraps every retrieval failure.
	ErrFetchFailure = errors.New("fetch failed")
	// ErrPersistence marks store failures.
	ErrPersistence = errors.New("persistence failure")
	// ErrNotFound is returned when a resource selector matches nothing.
	ErrNotFound = errors.New("resource not found")
	// ErrRecipientGone is returned by notifiers when the owner can no longer be reached.
	ErrRecipientGone = errors.New("recipient gone")
	// ErrCycleInProgress rejects a batch trigger while another batch runs.
	ErrCycleInProgress = errors.New("check cycle already in progress")
)

// FetchErrorKind classifies retrieval failures.
type FetchErrorKind string

const (
	FetchTimeout    FetchErrorKind = "timeout"
	FetchHTTPStatus FetchErrorKind = "http_status"
	FetchNetwork    FetchErrorKind = "network"
)

// FetchError is returned when neither mirrors nor direct retrieval succeed.
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchHTTPStatus {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrFetchFailure) match any FetchError.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailure
}
