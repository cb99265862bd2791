package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CollectorEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_events_total",
			Help: "Total number of events handled by the collector (count)",
		},
		[]string{"status"},
	)

	CollectorProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collector_processing_duration_ms",
			Help:    "Per-event pipeline duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"status"},
	)

	ProfileLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_lookups_total",
			Help: "Total number of user profile lookups (count)",
		},
		[]string{"provider", "status"},
	)

	UploadPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upload_publish_total",
			Help: "Total number of wire records published to the output topic (count)",
		},
		[]string{"status"},
	)

	UploadRetryAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "upload_retry_attempts_total",
			Help: "Total number of retried output publishes (count)",
		},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_requests_total",
			Help: "Ingest requests seen by the rate limiter (count)",
		},
		[]string{"status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// Event statuses recorded against CollectorEventsTotal.
const (
	StatusAccepted = "accepted"
	StatusDropped  = "dropped"
	StatusFiltered = "filtered"
	StatusFailed   = "failed"
)

func RegisterCollectorMetrics() {
	prometheus.MustRegister(
		CollectorEventsTotal,
		CollectorProcessingDuration,
		ProfileLookupsTotal,
		UploadPublishTotal,
		UploadRetryAttemptsTotal,
		RateLimitRequestsTotal,
	)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
}

func ObserveProcessingDuration(d time.Duration, status string) {
	CollectorProcessingDuration.WithLabelValues(status).Observe(float64(d.Milliseconds()))
}
