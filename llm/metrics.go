package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes used as metric label values.
const (
	outcomeSuccess     = "success"
	outcomeTransient   = "transient_error"
	outcomeFatal       = "fatal_error"
	outcomeCircuitOpen = "circuit_open"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planforge_llm_requests_total",
		Help: "Generation requests by provider, capability, and outcome.",
	}, []string{"provider", "capability", "outcome"})

	requestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planforge_llm_request_seconds",
		Help:    "Wall-clock duration of generation requests, retries included.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"provider", "capability"})
)
