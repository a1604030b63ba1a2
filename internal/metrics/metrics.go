// Package metrics exposes Prometheus counters for checks and notifications.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pagewatcher"

// Check outcomes used as label values.
const (
	OutcomeStarted   = "started"
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ChecksTotal          *prometheus.CounterVec
	CheckDurationSeconds prometheus.Histogram
	CyclesTotal          *prometheus.CounterVec
	CycleDurationSeconds prometheus.Histogram
	NotificationsTotal   *prometheus.CounterVec
}

// New creates and registers the collectors on reg, or the default registerer when nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checks_total",
				Help:      "Resource checks by outcome",
			},
			[]string{"outcome"},
		),
		CheckDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "check_duration_seconds",
				Help:      "Duration of a single resource check including pacing",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		CyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Batch cycles by status",
			},
			[]string{"status"},
		),
		CycleDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of completed batch cycles",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification deliveries by event kind and status",
			},
			[]string{"kind", "status"},
		),
	}
}

func (m *Metrics) ObserveCheck(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(outcome).Inc()
	m.CheckDurationSeconds.Observe(d.Seconds())
}

func (m *Metrics) ObserveCycle(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(status).Inc()
	if status == "completed" {
		m.CycleDurationSeconds.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveNotification(kind string, err error) {
	if m == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.NotificationsTotal.WithLabelValues(kind, status).Inc()
}
