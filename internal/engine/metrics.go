package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "personad"

var (
	// generationAttempts tracks how many backend calls a single reply took,
	// split by outcome. Attempts close to the ceiling suggest validators
	// that are too strict or a badly framed prompt.
	generationAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "generation",
			Name:      "attempts",
			Help:      "Number of completion attempts per generation",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
		[]string{"status"},
	)

	// generationDuration measures the full generate/validate loop.
	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Duration of the full generation loop in seconds",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 7, 10, 15, 20, 30, 45, 60},
		},
		[]string{"status"},
	)

	// validatorRejections counts vetoes per validator.
	validatorRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "generation",
			Name:      "validator_rejections_total",
			Help:      "Total number of candidate responses rejected, per validator",
		},
		[]string{"validator"},
	)
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

func recordGeneration(attempts int, success bool, durationSeconds float64) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	generationAttempts.WithLabelValues(status).Observe(float64(attempts))
	generationDuration.WithLabelValues(status).Observe(durationSeconds)
}

func recordRejection(validator string) {
	validatorRejections.WithLabelValues(validator).Inc()
}
