package backend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Hop metrics, one observation per direct translation.
	hopRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyglot_backend_translations_total",
			Help: "Total number of direct translations executed by a local backend",
		},
		[]string{"backend", "status"},
	)

	hopRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polyglot_backend_translation_duration_seconds",
			Help:    "Duration of direct translations in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"backend", "status"},
	)

	// Worker engine metrics
	workerBusyConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "polyglot_worker_busy_connections",
			Help: "Number of connections to an inference worker currently in use",
		},
		[]string{"backend"},
	)

	workerQueueWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polyglot_worker_queue_wait_seconds",
			Help:    "Time spent waiting for a free worker connection slot",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"backend"},
	)

	socketConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyglot_worker_socket_connections_total",
			Help: "Total number of unix socket connections to inference workers",
		},
		[]string{"backend", "status"},
	)
)

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func observeHop(backend string, success bool, duration time.Duration) {
	status := statusLabel(success)
	hopRequestsTotal.WithLabelValues(backend, status).Inc()
	hopRequestDuration.WithLabelValues(backend, status).Observe(duration.Seconds())
}
