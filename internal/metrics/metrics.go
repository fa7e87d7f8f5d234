// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messenger_messages_sent_total",
		Help: "Messages persisted and announced.",
	})

	EventsBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messenger_events_broadcast_total",
		Help: "Realtime events emitted, by event type.",
	}, []string{"type"})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messenger_events_dropped_total",
		Help: "Events dropped because a client send buffer was full.",
	})

	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "messenger_ws_connections_active",
		Help: "Currently connected websocket sessions.",
	})
)

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
