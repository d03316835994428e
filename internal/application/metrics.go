package application

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments shared by the services. A nil
// *Metrics is valid and records nothing, which keeps tests free of registries.
type Metrics struct {
	reconciliations *prometheus.CounterVec
	dnsCalls        *prometheus.CounterVec
	tokenRefreshes  *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
}

// NewMetrics creates the instruments and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reconciliations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagesdns_reconciliations_total",
				Help: "Domain reconciliations by transition.",
			}, []string{"transition"}),
		dnsCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagesdns_dns_calls_total",
				Help: "DNS provider calls by operation and result.",
			}, []string{"op", "result"}),
		tokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagesdns_token_refreshes_total",
				Help: "Installation token refreshes by result.",
			}, []string{"result"}),
		webhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagesdns_webhook_events_total",
				Help: "Webhook deliveries by event kind and outcome.",
			}, []string{"kind", "outcome"}),
	}

	reg.MustRegister(m.reconciliations, m.dnsCalls, m.tokenRefreshes, m.webhookEvents)
	return m
}

func (m *Metrics) reconciled(t Transition) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) dnsCall(op string, err error) {
	if m == nil {
		return
	}
	m.dnsCalls.WithLabelValues(op, resultLabel(err)).Inc()
}

func (m *Metrics) tokenRefreshed(err error) {
	if m == nil {
		return
	}
	m.tokenRefreshes.WithLabelValues(resultLabel(err)).Inc()
}

// WebhookHandled counts one webhook delivery.
func (m *Metrics) WebhookHandled(kind, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(kind, outcome).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
