// Package metrics exposes the Prometheus collectors of the payment pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "civicpay"

var (
	ordersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_created_total",
		Help:      "Payment orders created, by purpose.",
	}, []string{"purpose"})

	reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciliations_total",
		Help:      "Order state reconciliations, by entry path and result.",
	}, []string{"path", "result"})

	webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Webhook deliveries, by event type and outcome.",
	}, []string{"event", "outcome"})

	gatewayCalls = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "gateway_call_duration_seconds",
		Help:      "Latency of payment gateway API calls.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
	}, []string{"op", "result"})

	outboxDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_dispatch_total",
		Help:      "Outbox effect deliveries, by kind and result.",
	}, []string{"kind", "result"})

	outboxPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "outbox_pending",
		Help:      "Outbox effects not yet accepted by a sink.",
	})
)

func OrderCreated(purpose string) {
	ordersCreated.WithLabelValues(purpose).Inc()
}

// Reconciled counts one settle/fail decision. path is "verify" or "webhook".
func Reconciled(path, result string) {
	reconciliations.WithLabelValues(path, result).Inc()
}

func WebhookHandled(event, outcome string) {
	if event == "" {
		event = "unknown"
	}
	webhookEvents.WithLabelValues(event, outcome).Inc()
}

func ObserveGatewayCall(op string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	gatewayCalls.WithLabelValues(op, result).Observe(d.Seconds())
}

func OutboxDispatched(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	outboxDispatches.WithLabelValues(kind, result).Inc()
}

func SetOutboxPending(n int64) {
	outboxPending.Set(float64(n))
}

// Handler serves the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}
