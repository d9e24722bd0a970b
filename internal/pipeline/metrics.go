package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "askdb_pipeline_runs_total",
		Help: "Pipeline runs by terminal outcome.",
	}, []string{"outcome"})

	stageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "askdb_pipeline_stage_failures_total",
		Help: "Stage failures by stage name, including the silent chart stage.",
	}, []string{"stage"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "askdb_pipeline_stage_duration_seconds",
		Help:    "Wall time of each upstream stage call.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"stage"})
)

const (
	outcomeCompleted = "completed"
	outcomeNoData    = "no_data"
	outcomeFailed    = "failed"
	outcomeRejected  = "rejected"
)
