package leaderboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values.
const (
	StatusOK               = "200"
	StatusDenied           = "400"
	StatusNotFound         = "404"
	StatusMethodNotAllowed = "405"
	StatusLimited          = "429"
	StatusError            = "500"

	endpointLeaderboard = "leaderboard"
	endpointPipeline    = "pipeline"
)

var (
	// HitsTotal counts total requests by endpoint and status class.
	HitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aesthete_api_hits_total",
		Help: "Total number of score API hits",
	}, []string{"endpoint", "status"})

	// LatencyHistogram measures request latency.
	LatencyHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aesthete_api_latency_seconds",
		Help:    "Latency of score API requests",
		Buckets: prometheus.DefBuckets,
	})
)
