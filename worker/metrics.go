package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job outcomes used as metric label values.
const (
	outcomeComplete = "complete"
	outcomeFallback = "fallback"
	outcomeStale    = "stale"
	outcomeRetried  = "retried"
	outcomeFailed   = "failed"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planforge_worker_jobs_total",
		Help: "Plan generation jobs by outcome.",
	}, []string{"outcome"})

	jobSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "planforge_worker_job_seconds",
		Help:    "Wall-clock duration of plan job handling.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})
)
