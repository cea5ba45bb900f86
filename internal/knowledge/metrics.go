package knowledge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "personad"

var (
	searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "knowledge",
			Name:      "search_duration_seconds",
			Help:      "Duration of passage search requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

func recordSearch(seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	searchDuration.WithLabelValues(status).Observe(seconds)
}
