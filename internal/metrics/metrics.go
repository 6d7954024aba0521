package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tsfwatch"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPResponseBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_bytes",
			Help:      "HTTP response body size; export downloads dominate the upper buckets",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		},
		[]string{"path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

// Refresh coordinator metrics
var (
	RefreshRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_runs_total",
			Help:      "Total number of refresh runs",
		},
		[]string{"coordinator", "status"},
	)

	RefreshSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_skipped_total",
			Help:      "Ticks skipped because a refresh was still in flight",
		},
		[]string{"coordinator"},
	)

	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Refresh run time distribution",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"coordinator"},
	)
)

// Business metrics
var (
	// OverallRisk is 0 (Low), 1 (Medium), 2 (High) or 3 (Critical).
	OverallRisk = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overall_risk_level",
			Help:      "Latest overall risk classification",
		},
	)

	StabilityFactor = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stability_factor",
			Help:      "Latest slope stability factor",
		},
	)

	ExportsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_generated_total",
			Help:      "Total number of export files generated",
		},
		[]string{"format"},
	)

	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts",
		},
		[]string{"outcome"},
	)

	CollaboratorFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_fallbacks_total",
			Help:      "External calls that failed and fell back to simulated values",
		},
		[]string{"collaborator"},
	)

	StationReadings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_readings_total",
			Help:      "Live station readings received",
		},
		[]string{"source"},
	)
)
