package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "merchant"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	RateLimitDecisions *prometheus.CounterVec
	BrokerPublishes    *prometheus.CounterVec
	BrokerDeliveries   *prometheus.CounterVec
	SettlementOutcomes *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RateLimitDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_decisions_total",
			Help:      "Admission decisions by throttler and result (allowed, blocked, fail_open).",
		}, []string{"throttler", "result"}),
		BrokerPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_publish_total",
			Help:      "Publish attempts by result (confirmed, nacked, dropped, error).",
		}, []string{"result"}),
		BrokerDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_deliveries_total",
			Help:      "Consumed deliveries by result (ack, nack_invalid, nack_failed).",
		}, []string{"result"}),
		SettlementOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_outcomes_total",
			Help:      "Settlement results by terminal status, plus compensations.",
		}, []string{"status"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Transaction page cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RateLimitDecisions,
		m.BrokerPublishes,
		m.BrokerDeliveries,
		m.SettlementOutcomes,
		m.CacheLookups,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
