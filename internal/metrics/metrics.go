// Package metrics exposes the broker's ambient Prometheus instrumentation,
// separate from the domain-level per-topic snapshot served by the control
// API. Grounded on
// adred-codev-ws_poc/go-server-3/internal/metrics/metrics.go.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps the Prometheus collectors used by the broker.
type Registry struct {
	Gauges   gaugeVec
	Messages counterVec
}

type gaugeVec struct {
	ActiveTopics      prometheus.Gauge
	ActiveSubscribers prometheus.Gauge
}

type counterVec struct {
	MessagesPublished prometheus.Counter
	MessagesDelivered prometheus.Counter
	MessagesDropped   prometheus.Counter
	AcceptErrors      prometheus.Counter
}

// NewRegistry creates the Prometheus metrics collectors.
func NewRegistry() *Registry {
	return &Registry{
		Gauges: gaugeVec{
			ActiveTopics: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "broker_topics_active",
				Help: "Number of topics currently registered",
			}),
			ActiveSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "broker_subscribers_active",
				Help: "Number of subscriber handles currently attached across all topics",
			}),
		},
		Messages: counterVec{
			MessagesPublished: promauto.NewCounter(prometheus.CounterOpts{
				Name: "broker_messages_published_total",
				Help: "Total number of messages accepted for publish",
			}),
			MessagesDelivered: promauto.NewCounter(prometheus.CounterOpts{
				Name: "broker_messages_delivered_total",
				Help: "Total number of messages delivered to subscribers",
			}),
			MessagesDropped: promauto.NewCounter(prometheus.CounterOpts{
				Name: "broker_messages_dropped_total",
				Help: "Total number of messages dropped due to a full ingest queue",
			}),
			AcceptErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "broker_accept_errors_total",
				Help: "Total number of WebSocket accept/handshake errors",
			}),
		},
	}
}

// Handler returns an HTTP handler exposing Prometheus metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}

// Sample is the minimal view of registry-wide state the ambient gauges
// need refreshed on each scrape tick.
type Sample struct {
	Topics      int
	Subscribers int
}

// Refresh updates the gauges from a fresh Sample. Called periodically by
// cmd/broker rather than wired to a push path, since topic/subscriber
// counts change far less often than messages are published.
func (r *Registry) Refresh(s Sample) {
	r.Gauges.ActiveTopics.Set(float64(s.Topics))
	r.Gauges.ActiveSubscribers.Set(float64(s.Subscribers))
}
