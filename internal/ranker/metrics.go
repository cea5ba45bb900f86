package ranker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "personad"

var (
	// rankDuration measures a full rank call: query embedding, candidate
	// embeddings (cache misses only) and the similarity pass.
	rankDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "ranker",
			Name:      "request_duration_seconds",
			Help:      "Duration of ranking requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
		[]string{"status"},
	)

	// embeddingCacheTotal tracks the candidate embedding cache hit rate.
	embeddingCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ranker",
			Name:      "embedding_cache_total",
			Help:      "Candidate embedding cache lookups by result",
		},
		[]string{"result"},
	)
)

func recordRank(durationSeconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	rankDuration.WithLabelValues(status).Observe(durationSeconds)
}

func recordCacheMisses(misses, hits int) {
	if misses > 0 {
		embeddingCacheTotal.WithLabelValues("miss").Add(float64(misses))
	}
	if hits > 0 {
		embeddingCacheTotal.WithLabelValues("hit").Add(float64(hits))
	}
}
