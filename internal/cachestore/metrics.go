package cachestore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts cache store operations by provider and outcome.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doccached",
			Subsystem: "cachestore",
			Name:      "operations_total",
			Help:      "Total cache store operations",
		},
		[]string{"provider", "operation", "result"},
	)

	// QueryDuration tracks similarity query latency.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "doccached",
			Subsystem: "cachestore",
			Name:      "query_duration_seconds",
			Help:      "Duration of similarity queries in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)

func observeOp(provider, operation, result string) {
	OperationsTotal.WithLabelValues(provider, operation, result).Inc()
}

func observeQuery(provider string, d time.Duration) {
	QueryDuration.WithLabelValues(provider).Observe(d.Seconds())
	observeOp(provider, "query", "success")
}
