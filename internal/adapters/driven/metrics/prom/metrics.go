// Package prom records pipeline metrics with prometheus.
package prom

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
)

// Ensure Metrics implements the interface.
var _ driven.Metrics = (*Metrics)(nil)

const namespace = "fhir_mcp"

// Metrics is a driven.Metrics backed by its own prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	ingestions     *prometheus.CounterVec
	ingestDuration *prometheus.HistogramVec
	chunks         prometheus.Counter
	coalesced      prometheus.Counter
	queries        *prometheus.CounterVec
	queryDuration  *prometheus.HistogramVec
	queryResults   prometheus.Histogram
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestions_total",
			Help:      "Ingest calls by outcome.",
		}, []string{"outcome"}),
		ingestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_duration_seconds",
			Help:      "Wall time of ingest calls.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_upserted_total",
			Help:      "Chunks embedded and written to the vector index.",
		}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestions_coalesced_total",
			Help:      "Ingest calls that joined an in-flight run.",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Query calls by outcome.",
		}, []string{"outcome"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Wall time of query calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		queryResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_results",
			Help:      "Passages returned per query.",
			Buckets:   prometheus.LinearBuckets(0, 5, 11),
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ingestions,
		m.ingestDuration,
		m.chunks,
		m.coalesced,
		m.queries,
		m.queryDuration,
		m.queryResults,
	)
	return m
}

// ObserveIngestion records a finished ingest call.
func (m *Metrics) ObserveIngestion(outcome string, elapsed time.Duration, chunks int) {
	m.ingestions.WithLabelValues(outcome).Inc()
	m.ingestDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if chunks > 0 {
		m.chunks.Add(float64(chunks))
	}
}

// ObserveQuery records a finished query call.
func (m *Metrics) ObserveQuery(outcome string, elapsed time.Duration, results int) {
	m.queries.WithLabelValues(outcome).Inc()
	m.queryDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	m.queryResults.Observe(float64(results))
}

// IncCoalesced counts a caller that joined an in-flight ingestion.
func (m *Metrics) IncCoalesced() {
	m.coalesced.Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
