// Package observability provides Prometheus metrics for the producer and consumer.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Failure reasons recorded on RecordFailures.
const (
	ReasonDecode = "decode"
	ReasonStore  = "store"
)

// Metrics holds the pipeline collectors on a private registry so that
// tests and multiple instances never collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	EventsSubmitted  prometheus.Counter
	SubmitFailures   prometheus.Counter
	BatchesProcessed prometheus.Counter
	RecordsStored    prometheus.Counter
	RecordFailures   *prometheus.CounterVec
	StoreLatency     prometheus.Histogram
}

// NewMetrics creates and registers all collectors under the given namespace.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		EventsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_submitted_total",
			Help:      "Total number of events accepted by the streaming channel",
		}),
		SubmitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submit_failures_total",
			Help:      "Total number of events the streaming channel rejected",
		}),
		BatchesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_processed_total",
			Help:      "Total number of delivered batches handled to completion",
		}),
		RecordsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_stored_total",
			Help:      "Total number of records written to the blob store",
		}),
		RecordFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_failures_total",
			Help:      "Total number of records that could not be stored, by reason",
		}, []string{"reason"}),
		StoreLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_latency_seconds",
			Help:      "Time to write a single object to the blob store",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
	}

	m.registry.MustRegister(
		m.EventsSubmitted,
		m.SubmitFailures,
		m.BatchesProcessed,
		m.RecordsStored,
		m.RecordFailures,
		m.StoreLatency,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
