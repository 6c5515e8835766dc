// Package metrics defines Prometheus metrics for the quota engine.
//
// Metrics are registered at init time via promauto and exposed on /metrics.
// Labels stay low-cardinality: resource type and tier only, never user IDs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "iopsai"

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

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

// Quota gate metrics
var (
	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_admissions_total",
			Help:      "Total number of quota gate decisions",
		},
		[]string{"resource", "tier", "outcome"},
	)

	AdmissionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_admission_errors_total",
			Help:      "Total number of quota gate failures by error code",
		},
		[]string{"resource", "code"},
	)

	AdmissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quota_admission_duration_seconds",
			Help:      "Quota gate decision latency distribution",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"resource"},
	)
)

// Outcome label values for AdmissionsTotal.
const (
	OutcomeAdmitted = "admitted"
	OutcomeDenied   = "denied"
)

// Reset job metrics
var (
	ResetRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reset_runs_total",
			Help:      "Total number of monthly reset job runs",
		},
		[]string{"status"},
	)

	ResetRolloversLast = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reset_rollovers_last",
			Help:      "Users rolled into the new period by the most recent reset run",
		},
	)
)

// Dataset storage metrics
var (
	DatasetUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_uploads_total",
			Help:      "Total number of dataset payload uploads",
		},
		[]string{"status"},
	)

	DatasetUploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_upload_bytes_total",
			Help:      "Total bytes of dataset payloads accepted",
		},
	)
)
