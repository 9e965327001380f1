// Package metrics declares the Prometheus collectors exported on /metrics.
// Collectors register with the default registry on package initialization.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Attempt outcomes recorded by GenerationAttempts.
const (
	OutcomeSuccess   = "success"
	OutcomeRetryable = "retryable"
	OutcomeTerminal  = "terminal"
	OutcomeCancelled = "cancelled"
)

var (
	GenerationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaelis_generation_attempts_total",
			Help: "Upstream chat-completion attempts by outcome",
		},
		[]string{"outcome"},
	)

	GenerationResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaelis_generation_results_total",
			Help: "Generation results by status and error kind",
		},
		[]string{"status", "kind"},
	)

	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vaelis_generation_duration_seconds",
			Help:    "Wall time of a logical generation including retries",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	DedupeRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vaelis_dedupe_rejections_total",
			Help: "Retry requests rejected as duplicates",
		},
	)

	DedupeBackendErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vaelis_dedupe_backend_errors_total",
			Help: "Dedupe cache failures that were let through",
		},
	)

	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaelis_search_requests_total",
			Help: "Web search lookups by result",
		},
		[]string{"result"},
	)

	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vaelis_ratelimit_rejections_total",
			Help: "API requests rejected by the per-user rate limiter",
		},
	)
)

// ObserveResult records the final status of a generation.
func ObserveResult(status, kind string) {
	if kind == "" {
		kind = "none"
	}
	GenerationResults.WithLabelValues(status, kind).Inc()
}
