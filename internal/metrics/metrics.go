// Package metrics defines the Prometheus collectors for the classification
// and retrieval engines and exposes an HTTP handler for scraping.
//
// All recording methods are safe on a nil *Metrics so engines can run
// without instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the counters below.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
	OutcomeNotFound = "not_found"
	OutcomeSkipped  = "skipped"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	registry *prometheus.Registry

	ClassificationsTotal *prometheus.CounterVec
	ClassifyLatency      prometheus.Histogram
	PagesScrapedTotal    *prometheus.CounterVec
	DocumentsIndexed     prometheus.Gauge
	EmbeddingsTotal      *prometheus.CounterVec
	SearchesTotal        *prometheus.CounterVec
	SearchResultsCount   prometheus.Histogram
	AnswersTotal         *prometheus.CounterVec
	TriageRoutesTotal    *prometheus.CounterVec
}

// New creates all collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ClassificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supportpilot_classifications_total",
				Help: "Ticket classifications by outcome (ok, fallback) and topic.",
			},
			[]string{"outcome", "topic"},
		),
		ClassifyLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "supportpilot_classify_duration_seconds",
				Help:    "Latency of a single ticket classification.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		PagesScrapedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supportpilot_pages_scraped_total",
				Help: "Documentation pages fetched by outcome (ok, skipped, error).",
			},
			[]string{"outcome"},
		),
		DocumentsIndexed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "supportpilot_documents_indexed",
				Help: "Number of documents currently held by the embedding index.",
			},
		),
		EmbeddingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supportpilot_embeddings_total",
				Help: "Embedding requests by purpose (document, query) and outcome.",
			},
			[]string{"purpose", "outcome"},
		),
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supportpilot_searches_total",
				Help: "Similarity searches by outcome (ok, not_found, error).",
			},
			[]string{"outcome"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "supportpilot_search_results_count",
				Help:    "Number of results returned per search.",
				Buckets: []float64{0, 1, 2, 3, 5, 10, 25},
			},
		),
		AnswersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supportpilot_answers_total",
				Help: "Generated answers by outcome (ok, not_found, error).",
			},
			[]string{"outcome"},
		),
		TriageRoutesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supportpilot_triage_routes_total",
				Help: "Triaged tickets by route (answered, routed).",
			},
			[]string{"route"},
		),
	}

	m.registry.MustRegister(
		m.ClassificationsTotal,
		m.ClassifyLatency,
		m.PagesScrapedTotal,
		m.DocumentsIndexed,
		m.EmbeddingsTotal,
		m.SearchesTotal,
		m.SearchResultsCount,
		m.AnswersTotal,
		m.TriageRoutesTotal,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler that serves the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveClassification(outcome, topic string, seconds float64) {
	if m == nil {
		return
	}
	m.ClassificationsTotal.WithLabelValues(outcome, topic).Inc()
	m.ClassifyLatency.Observe(seconds)
}

func (m *Metrics) ObservePage(outcome string) {
	if m == nil {
		return
	}
	m.PagesScrapedTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveEmbedding(purpose, outcome string) {
	if m == nil {
		return
	}
	m.EmbeddingsTotal.WithLabelValues(purpose, outcome).Inc()
}

func (m *Metrics) SetIndexSize(n int) {
	if m == nil {
		return
	}
	m.DocumentsIndexed.Set(float64(n))
}

func (m *Metrics) ObserveSearch(outcome string, results int) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(outcome).Inc()
	m.SearchResultsCount.Observe(float64(results))
}

func (m *Metrics) ObserveAnswer(outcome string) {
	if m == nil {
		return
	}
	m.AnswersTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRoute(route string) {
	if m == nil {
		return
	}
	m.TriageRoutesTotal.WithLabelValues(route).Inc()
}
