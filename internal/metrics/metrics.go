package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docuflow_jobs_created_total",
		Help: "Total number of conversion jobs created",
	})

	JobsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docuflow_jobs_completed_total",
		Help: "Total number of conversion jobs completed successfully",
	})

	JobsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docuflow_jobs_failed_total",
		Help: "Total number of conversion jobs that failed",
	})

	JobsTimedOutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docuflow_jobs_timed_out_total",
		Help: "Total number of conversion jobs failed by the timeout monitor",
	})

	StatusUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docuflow_status_updates_total",
		Help: "Total number of progress updates reported by stage executors",
	})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docuflow_active_jobs",
		Help: "Current number of jobs in pending or processing state",
	})

	ConversionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docuflow_conversion_duration_seconds",
		Help:    "Time from job creation to a terminal state in seconds",
		Buckets: prometheus.DefBuckets,
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docuflow_active_workers",
		Help: "Current number of active conversion workers",
	})
)
