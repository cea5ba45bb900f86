package selector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "personad"

var (
	// selectionDuration measures ranking plus budget truncation.
	selectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "selection",
			Name:      "duration_seconds",
			Help:      "Duration of context selection in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)

	// selectionItems tracks how many fragments survived the budget.
	selectionItems = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "selection",
			Name:      "items",
			Help:      "Number of context fragments selected per call",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	// selectionDegradedTotal counts selections that fell back to empty
	// because the ranking collaborator failed.
	selectionDegradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "selection",
			Name:      "degraded_total",
			Help:      "Total number of selections degraded to empty after a ranker failure",
		},
	)
)

func recordSelection(durationSeconds float64, items int, degraded bool) {
	result := "ok"
	if degraded {
		result = "degraded"
		selectionDegradedTotal.Inc()
	}
	selectionDuration.WithLabelValues(result).Observe(durationSeconds)
	if !degraded {
		selectionItems.Observe(float64(items))
	}
}
