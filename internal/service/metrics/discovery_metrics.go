package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	DiscoveryStageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pairscout",
			Subsystem: "discovery",
			Name:      "stage_latency_seconds",
			Help:      "Latency of discovery pipeline stages",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	DiscoveryStageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pairscout",
			Subsystem: "discovery",
			Name:      "stage_errors_total",
			Help:      "Errors by discovery pipeline stage",
		},
		[]string{"stage"},
	)

	DiscoveryCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pairscout",
			Subsystem: "discovery",
			Name:      "candidates_per_run",
			Help:      "Candidate tuples produced per discovery run",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
		},
	)

	DiscoveryPromotions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pairscout",
			Subsystem: "discovery",
			Name:      "promotions_total",
			Help:      "Pairs by final status per discovery run",
		},
		[]string{"status"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			DiscoveryStageLatency,
			DiscoveryStageErrors,
			DiscoveryCandidates,
			DiscoveryPromotions,
		)
	})
}
