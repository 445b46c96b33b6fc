// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cardkeeper"

// Metrics groups the server collectors. Build it with New so tests can use a
// private registry.
type Metrics struct {
	// Labels: method, route, status
	RequestsTotal *prometheus.CounterVec
	// Labels: method, route
	RequestDuration *prometheus.HistogramVec
	// Labels: op (create, update, delete), outcome (ok, noop, too_new, stale, not_found, error)
	CardMutations *prometheus.CounterVec
	// Number of distinct cards returned per catch-up.
	SyncChanges prometheus.Histogram
}

// Outcomes recorded in CardMutations.
const (
	OutcomeOK       = "ok"
	OutcomeNoop     = "noop"
	OutcomeTooNew   = "too_new"
	OutcomeStale    = "stale"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		CardMutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cards",
			Name:      "mutations_total",
			Help:      "Card mutations by operation and outcome",
		}, []string{"op", "outcome"}),
		SyncChanges: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "changes",
			Help:      "Distinct changed cards returned per catch-up",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}),
	}
}
