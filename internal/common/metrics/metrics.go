// internal/common/metrics/metrics.go
package metrics

import (
	"time"

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

	// AccrualsWritten counts persisted accrual rows by source:
	// "historical", "sweep" or "manual".
	AccrualsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_accruals_written_total",
			Help: "Total number of interest accrual rows written",
		},
		[]string{"source"},
	)

	SweepLoans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_sweep_loans_total",
			Help: "Loans visited by the daily sweep, by outcome",
		},
		[]string{"outcome"},
	)

	QuoteCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_cache_requests_total",
			Help: "Token price cache lookups, by result",
		},
		[]string{"result"},
	)
)

const (
	SourceHistorical = "historical"
	SourceSweep      = "sweep"
	SourceManual     = "manual"

	OutcomeAccrued = "accrued"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// TrackJob marks a job active and returns a func that records its outcome.
// errorCode is empty for a completed job.
func TrackJob(taskType string) func(errorCode string) {
	start := time.Now()
	WorkerJobsActive.WithLabelValues(taskType).Inc()

	return func(errorCode string) {
		WorkerJobsActive.WithLabelValues(taskType).Dec()
		WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
		if errorCode == "" {
			WorkerJobsCompleted.WithLabelValues(taskType).Inc()
			return
		}
		WorkerJobsFailed.WithLabelValues(taskType, errorCode).Inc()
	}
}
