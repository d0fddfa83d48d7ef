package admission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	inFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "polyglot_admission_in_flight",
			Help: "Last observed value of the shared in-flight request counter",
		},
	)

	rejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polyglot_admission_rejections_total",
			Help: "Total number of requests rejected by admission control",
		},
	)

	storeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyglot_admission_store_errors_total",
			Help: "Total number of failed counter store operations",
		},
		[]string{"operation"},
	)
)
