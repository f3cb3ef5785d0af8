package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "costguard_scheduler_job_runs_total",
		Help: "Completed scheduler job runs by job name",
	}, []string{"job"})

	jobFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "costguard_scheduler_job_failures_total",
		Help: "Failed scheduler job runs by job name",
	}, []string{"job"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "costguard_scheduler_job_duration_seconds",
		Help:    "Scheduler job run duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	recommendationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "costguard_recommendations_created_total",
		Help: "Recommendations created by generation runs",
	})
)
