// Package metrics exposes Prometheus collectors for the download pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes
const (
	OutcomeSuccess       = "success"
	OutcomeInvalidLink   = "invalid_link"
	OutcomeRateLimited   = "rate_limited"
	OutcomeConfiguration = "configuration_error"
	OutcomeUpstream      = "upstream_error"
	OutcomeUnexpected    = "unexpected_error"
)

// Metrics holds the collectors registered for the service
type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	rateLimitDecisions *prometheus.CounterVec
	upstreamDuration   *prometheus.HistogramVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reels_download_requests_total",
				Help: "Download requests by outcome",
			},
			[]string{"outcome"},
		),
		rateLimitDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reels_ratelimit_decisions_total",
				Help: "Rate limiter decisions",
			},
			[]string{"decision"},
		),
		upstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reels_upstream_request_duration_seconds",
				Help:    "Latency of media resolution API calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
	}
}

// ObserveRequest counts a finished download request
func (m *Metrics) ObserveRequest(outcome string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimit counts a rate limiter decision
func (m *Metrics) ObserveRateLimit(allowed bool) {
	if m == nil {
		return
	}
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	m.rateLimitDecisions.WithLabelValues(decision).Inc()
}

// ObserveUpstream records the latency of one upstream call
func (m *Metrics) ObserveUpstream(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(result).Observe(d.Seconds())
}
