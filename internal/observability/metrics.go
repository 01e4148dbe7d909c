package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hangout_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsHandshakeRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hangout_ws_handshake_rejections_total",
			Help: "Total number of rejected websocket handshakes.",
		},
		[]string{"reason"},
	)
	rateLimitRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hangout_rate_limit_rejections_total",
			Help: "Total number of rate-limited requests.",
		},
		[]string{"class"},
	)
	stageTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hangout_stage_transitions_total",
			Help: "Total number of automatic stage transitions.",
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(
		wsActiveConnections,
		wsHandshakeRejections,
		rateLimitRejections,
		stageTransitions,
	)
}

func IncWSActive()                     { wsActiveConnections.Inc() }
func DecWSActive()                     { wsActiveConnections.Dec() }
func IncWSRejection(reason string)     { wsHandshakeRejections.WithLabelValues(reason).Inc() }
func IncRateLimitRejection(cls string) { rateLimitRejections.WithLabelValues(cls).Inc() }
func IncStageTransition(stage string)  { stageTransitions.WithLabelValues(stage).Inc() }

// MetricsHandler serves the prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
