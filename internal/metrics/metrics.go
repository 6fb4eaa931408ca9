// Package metrics exposes prometheus counters for checkout and webhook
// activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

type Metrics struct {
	CheckoutsCreated *prometheus.CounterVec
	WebhookEvents    *prometheus.CounterVec
	RefundsExecuted  *prometheus.CounterVec
}

func New() (*Metrics, error) {
	m := &Metrics{
		CheckoutsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "checkouts_created_total",
			Help:      "Checkout sessions created, by kind.",
		}, []string{"kind"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "webhook_events_total",
			Help:      "Webhook deliveries, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		RefundsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "refunds_executed_total",
			Help:      "Refund executions, by outcome.",
		}, []string{"outcome"}),
	}

	for _, collector := range []prometheus.Collector{
		m.CheckoutsCreated,
		m.WebhookEvents,
		m.RefundsExecuted,
	} {
		if err := prometheus.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) RecordWebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) RecordCheckout(kind string) {
	if m == nil {
		return
	}
	m.CheckoutsCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordRefund(outcome string) {
	if m == nil {
		return
	}
	m.RefundsExecuted.WithLabelValues(outcome).Inc()
}

var Module = fx.Module("metrics",
	fx.Provide(New),
)
