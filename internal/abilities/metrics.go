package abilities

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "personad"

var (
	solvesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "abilities",
			Name:      "solves_total",
			Help:      "Total ability matches by ability name and outcome.",
		},
		[]string{"ability", "status"},
	)
)

func recordSolve(name string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	solvesTotal.WithLabelValues(name, status).Inc()
}
