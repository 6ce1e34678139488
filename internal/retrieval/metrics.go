package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "doccached",
		Subsystem: "retrieval",
		Name:      "searches_total",
		Help:      "Searches by outcome (hit, exhausted).",
	}, []string{"outcome"})

	tierHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "doccached",
		Subsystem: "retrieval",
		Name:      "tier_hits_total",
		Help:      "Which fallback tier answered (cache, legacy, primary_scan, identity_retry).",
	}, []string{"tier"})
)

func observeSearch(outcome string) {
	searchesTotal.WithLabelValues(outcome).Inc()
}

func observeTier(tier string) {
	tierHitsTotal.WithLabelValues(tier).Inc()
}
