package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "personad"

var (
	dispatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "router",
			Name:      "dispatches_total",
			Help:      "Total messages that addressed at least one persona.",
		},
	)

	dispatchedTasksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "router",
			Name:      "tasks_total",
			Help:      "Total generation tasks started by the router.",
		},
	)
)

func recordDispatch(tasks int) {
	dispatchesTotal.Inc()
	dispatchedTasksTotal.Add(float64(tasks))
}
