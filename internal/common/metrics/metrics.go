// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

var (
	InsightRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_requests_total",
			Help: "Insight generation requests by section and outcome",
		},
		[]string{"section", "outcome"},
	)

	InsightCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_cache_lookups_total",
			Help: "Insight cache lookups by result",
		},
		[]string{"result"},
	)

	InsightRemoteCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_remote_calls_total",
			Help: "Narrative generation calls by outcome",
		},
		[]string{"outcome"},
	)

	InsightGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insights_generation_duration_seconds",
			Help:    "Duration of insight generation per section",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"section"},
	)

	InsightsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "insights_in_flight",
			Help: "Insight requests currently in flight",
		},
	)

	InsightsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_emitted_total",
			Help: "Insights returned to callers by category",
		},
		[]string{"category"},
	)
)

// Request outcomes.
const (
	OutcomeResolved  = "resolved"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
	OutcomeGated     = "gated"
	OutcomeCached    = "cached"
)
