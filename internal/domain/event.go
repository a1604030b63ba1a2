package domain

import "time"

// EventKind enumerates notification events emitted by the checker.
type EventKind string

const (
	EventTrackingStarted EventKind = "tracking_started"
	EventChanged         EventKind = "changed"
	EventCheckFailed     EventKind = "check_failed"
	EventNoChange        EventKind = "no_change"
)

// Event is structured notification data; transports render it.
type Event struct {
	Kind   EventKind
	URL    string
	At     time.Time
	Reason string
}

func TrackingStarted(url string, at time.Time) Event {
	return Event{Kind: EventTrackingStarted, URL: url, At: at}
}

func Changed(url string, at time.Time) Event {
	return Event{Kind: EventChanged, URL: url, At: at}
}

func CheckFailed(url string, at time.Time, reason string) Event {
	return Event{Kind: EventCheckFailed, URL: url, At: at, Reason: reason}
}

func NoChange(url string, at time.Time) Event {
	return Event{Kind: EventNoChange, URL: url, At: at}
}
