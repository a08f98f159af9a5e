// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics bundles the gateway collectors. Each server owns its own registry
// so tests can build routers repeatedly without duplicate registration.
type Metrics struct {
	Registry *prometheus.Registry

	SignatureRejections     *prometheus.CounterVec
	SignatureAccepted       prometheus.Counter
	VerificationTransitions *prometheus.CounterVec
	EventDeliveries         *prometheus.CounterVec
	RequestDuration         *prometheus.HistogramVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		SignatureRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mtg",
			Name:      "signature_rejections_total",
			Help:      "Signed requests rejected, by internal reason.",
		}, []string{"reason"}),
		SignatureAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mtg",
			Name:      "signature_accepted_total",
			Help:      "Signed requests admitted.",
		}),
		VerificationTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mtg",
			Name:      "payment_transitions_total",
			Help:      "Payment status transitions applied by the verification workflow.",
		}, []string{"to"}),
		EventDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mtg",
			Name:      "event_deliveries_total",
			Help:      "Outbox event deliveries, by sink and result.",
		}, []string{"sink", "result"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mtg",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.Registry.MustRegister(
		m.SignatureRejections,
		m.SignatureAccepted,
		m.VerificationTransitions,
		m.EventDeliveries,
		m.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
