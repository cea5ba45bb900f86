package persona

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "personad"

var (
	repliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "persona",
			Name:      "replies_total",
			Help:      "Total replies by persona and outcome.",
		},
		[]string{"persona", "outcome"},
	)

	replyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "persona",
			Name:      "reply_duration_seconds",
			Help:      "End-to-end reply latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"persona"},
	)
)

func recordReply(persona, outcome string, seconds float64) {
	repliesTotal.WithLabelValues(persona, outcome).Inc()
	replyDuration.WithLabelValues(persona).Observe(seconds)
}
