package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters exposed on the status server's /metrics endpoint.
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iqexport_requests_total",
		Help: "Upstream HTTP requests by result class.",
	}, []string{"result"})

	RetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iqexport_retries_total",
		Help: "Upstream requests that were retried.",
	})

	OutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iqexport_outcomes_total",
		Help: "Per-application export outcomes by status.",
	}, []string{"status"})

	PipelinesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "iqexport_pipelines_in_flight",
		Help: "Application pipelines currently executing.",
	})
)
