package core

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's Prometheus collectors on a private registry.
type Metrics struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	updates    *prometheus.CounterVec
	registered prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tgbridge_http_requests_total",
			Help: "HTTP requests handled by the gateway.",
		}, []string{"method", "status"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tgbridge_webhook_updates_total",
			Help: "Webhook updates received, by processing outcome.",
		}, []string{"outcome"}),
		registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tgbridge_webhook_registration_state",
			Help: "1 when the webhook is registered with the bot platform.",
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.updates,
		m.registered,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRequest(method string, status int) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (m *Metrics) observeUpdate(err error) {
	outcome := "processed"
	if err != nil {
		outcome = "failed"
	}
	m.updates.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeRegistration(state WebhookState) {
	if state == WebhookRegistered {
		m.registered.Set(1)
		return
	}
	m.registered.Set(0)
}
