// Package metrics holds the Prometheus collectors for the submission
// pipeline. All methods are safe on a nil *Metrics so components can run
// without instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bounty"

type Metrics struct {
	SubmissionsCreated   prometheus.Counter
	DuplicateSubmissions prometheus.Counter
	Reviews              *prometheus.CounterVec
	XPAwardFailures      prometheus.Counter
	MediaIngested        *prometheus.CounterVec
	MediaRejected        *prometheus.CounterVec
	IngestDuration       prometheus.Histogram
	CounterFailures      prometheus.Counter
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SubmissionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submissions",
			Name:      "created_total",
			Help:      "Pending submissions inserted.",
		}),
		DuplicateSubmissions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submissions",
			Name:      "duplicates_total",
			Help:      "Create attempts refused because a submission already exists.",
		}),
		Reviews: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reviews",
			Name:      "total",
			Help:      "Review decisions by action and outcome.",
		}, []string{"action", "outcome"}),
		XPAwardFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "award_failures_total",
			Help:      "XP award instructions that failed and need reconciliation.",
		}),
		MediaIngested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "media",
			Name:      "ingested_total",
			Help:      "Media assets stored, by kind.",
		}, []string{"kind"}),
		MediaRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "media",
			Name:      "rejected_total",
			Help:      "Media uploads refused, by reason.",
		}, []string{"reason"}),
		IngestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "media",
			Name:      "ingest_duration_seconds",
			Help:      "Time spent validating and storing an upload.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		CounterFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "counter_failures_total",
			Help:      "Best-effort count increments (bounty submissions, upvotes) that failed.",
		}),
	}
}

func (m *Metrics) SubmissionCreated() {
	if m != nil {
		m.SubmissionsCreated.Inc()
	}
}

func (m *Metrics) DuplicateSubmission() {
	if m != nil {
		m.DuplicateSubmissions.Inc()
	}
}

// Review records one decision; outcome is "ok" or an error reason.
func (m *Metrics) Review(action, outcome string) {
	if m != nil {
		m.Reviews.WithLabelValues(action, outcome).Inc()
	}
}

func (m *Metrics) XPAwardFailed() {
	if m != nil {
		m.XPAwardFailures.Inc()
	}
}

func (m *Metrics) MediaStored(kind string, took time.Duration) {
	if m != nil {
		m.MediaIngested.WithLabelValues(kind).Inc()
		m.IngestDuration.Observe(took.Seconds())
	}
}

func (m *Metrics) MediaRefused(reason string) {
	if m != nil {
		m.MediaRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) CounterFailed() {
	if m != nil {
		m.CounterFailures.Inc()
	}
}
