package completion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "personad"

var (
	// completionRequestDuration measures completion backend round-trips.
	completionRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "completion",
			Name:      "request_duration_seconds",
			Help:      "Duration of completion API requests in seconds",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 7, 10, 15, 20, 30, 45, 60},
		},
		[]string{"model", "status"},
	)

	// completionRequestsTotal counts completion requests.
	completionRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "completion",
			Name:      "requests_total",
			Help:      "Total number of completion API requests",
		},
		[]string{"model", "status"},
	)

	// completionTokensTotal counts consumed tokens by type.
	completionTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "completion",
			Name:      "tokens_total",
			Help:      "Total number of tokens used for completion requests",
		},
		[]string{"model", "type"},
	)

	// completionRetriesTotal counts transport-level retries.
	completionRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "completion",
			Name:      "retries_total",
			Help:      "Total number of retry attempts for completion requests",
		},
		[]string{"model"},
	)
)

const (
	statusSuccess   = "success"
	statusError     = "error"
	tokenTypePrompt = "prompt"
	tokenTypeCompl  = "completion"
)

// RecordCompletionRequest records the outcome of one completion round-trip.
func RecordCompletionRequest(model string, durationSeconds float64, success bool, promptTokens, completionTokens int) {
	status := statusSuccess
	if !success {
		status = statusError
	}

	completionRequestDuration.WithLabelValues(model, status).Observe(durationSeconds)
	completionRequestsTotal.WithLabelValues(model, status).Inc()

	if success {
		if promptTokens > 0 {
			completionTokensTotal.WithLabelValues(model, tokenTypePrompt).Add(float64(promptTokens))
		}
		if completionTokens > 0 {
			completionTokensTotal.WithLabelValues(model, tokenTypeCompl).Add(float64(completionTokens))
		}
	}
}

// RecordCompletionRetry records one transport retry.
func RecordCompletionRetry(model string) {
	completionRetriesTotal.WithLabelValues(model).Inc()
}
