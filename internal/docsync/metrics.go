package docsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "doccached",
		Subsystem: "sync",
		Name:      "passes_total",
		Help:      "Sync passes by outcome (synced, warm, busy, failed).",
	}, []string{"result"})

	chunksSyncedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doccached",
		Subsystem: "sync",
		Name:      "chunks_total",
		Help:      "Chunks written to the cache store by sync passes.",
	})
)

func observeSync(result string) {
	syncsTotal.WithLabelValues(result).Inc()
}
