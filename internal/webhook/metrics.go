package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts webhook traffic with the companion. Each Service owns its
// registry so the counters never collide across instances.
type Metrics struct {
	Registry         *prometheus.Registry
	MessagesSent     prometheus.Counter
	MessagesReceived prometheus.Counter
	Errors           prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "webhook_messages_sent_total",
			Help: "Total messages sent to the companion webhook",
		}),
		MessagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "webhook_messages_received_total",
			Help: "Total messages received from the companion webhook",
		}),
		Errors: factory.NewCounter(prometheus.CounterOpts{
			Name: "webhook_errors_total",
			Help: "Total webhook send and receive errors",
		}),
	}
}
