package federation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	peerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyglot_federation_requests_total",
			Help: "Total number of single HTTP calls to peers by outcome",
		},
		[]string{"peer", "endpoint", "result"},
	)

	peerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polyglot_federation_request_duration_seconds",
			Help:    "Duration of single HTTP calls to peers in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0, 120.0},
		},
		[]string{"peer", "endpoint"},
	)

	peerRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyglot_federation_retries_total",
			Help: "Total number of peer calls retried after a transport failure",
		},
		[]string{"peer", "endpoint"},
	)

	discoveryRoundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyglot_federation_discovery_rounds_total",
			Help: "Total number of model discovery rounds by outcome",
		},
		[]string{"result"},
	)

	peerHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "polyglot_federation_peer_healthy",
			Help: "Whether a peer reported itself available on the last health poll (1) or not (0)",
		},
		[]string{"peer"},
	)
)

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	if fe, ok := err.(*Error); ok {
		return fe.Kind.String()
	}
	return "error"
}
