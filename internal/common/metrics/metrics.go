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

	ToolExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_tool_executions_total",
			Help: "Tool dispatches by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	ToolCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_tool_cache_hits_total",
			Help: "Tool results served from the Redis cache",
		},
		[]string{"tool"},
	)

	SourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_source_failures_total",
			Help: "Fetcher failures absorbed by the pipeline",
		},
		[]string{"source"},
	)

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_pipeline_runs_total",
			Help: "Pipeline runs by terminal state and failed stage",
		},
		[]string{"state", "stage"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsletter_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_deliveries_total",
			Help: "Newsletter deliveries by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	ScheduledBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_scheduled_batches_total",
			Help: "Scheduler slots by outcome (ran, skipped, failed)",
		},
		[]string{"outcome"},
	)
)
