// Package metrics holds the Prometheus collectors for rooms, relaying and
// AI invocations.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coderoom"

// Handshake rejection reasons.
const (
	ReasonInvalidProject = "invalid_project"
	ReasonMissingToken   = "missing_token"
	ReasonInvalidToken   = "invalid_token"
	ReasonInternal       = "internal"
)

type Metrics struct {
	registry *prometheus.Registry

	ActiveConnections   prometheus.Gauge
	ActiveRooms         prometheus.Gauge
	MessagesRelayed     prometheus.Counter
	MessagesDropped     prometheus.Counter
	AIInvocations       *prometheus.CounterVec
	HandshakeRejections *prometheus.CounterVec
}

// New registers every collector on a fresh registry, so several instances
// can coexist in tests.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections_active",
			Help:      "Number of open realtime connections.",
		}),
		ActiveRooms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "rooms_active",
			Help:      "Number of project rooms with at least one member.",
		}),
		MessagesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "messages_relayed_total",
			Help:      "Messages queued for delivery to room members.",
		}),
		MessagesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "messages_dropped_total",
			Help:      "Messages dropped because a member queue was full or closed.",
		}),
		AIInvocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "invocations_total",
			Help:      "AI invocations by outcome.",
		}, []string{"outcome"}),
		HandshakeRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "handshake_rejections_total",
			Help:      "Rejected realtime handshakes by reason.",
		}, []string{"reason"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveAI counts one AI invocation.
func (m *Metrics) ObserveAI(outcome string) {
	m.AIInvocations.WithLabelValues(outcome).Inc()
}

// Reject counts one rejected handshake.
func (m *Metrics) Reject(reason string) {
	m.HandshakeRejections.WithLabelValues(reason).Inc()
}
