// Package metrics defines the Prometheus metric collectors used by the
// ingestion pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	RunsTotal             *prometheus.CounterVec
	RunDuration           prometheus.Histogram
	ItemsFetchedTotal     prometheus.Counter
	SignalsCreatedTotal   prometheus.Counter
	SourceFetchTotal      *prometheus.CounterVec
	SourceFetchDuration   *prometheus.HistogramVec
	ClassificationsTotal  *prometheus.CounterVec
	EditionCacheHitsTotal prometheus.Counter
	EditionCacheMissTotal prometheus.Counter
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates and registers all collectors with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates the collectors and registers them with reg. Tests
// pass a fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 30, 120},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestion_runs_total",
				Help: "Total ingestion runs by terminal status.",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingestion_run_duration_seconds",
				Help:    "Wall-clock duration of ingestion runs.",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		ItemsFetchedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingestion_items_fetched_total",
				Help: "Raw items fetched across all sources.",
			},
		),
		SignalsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingestion_signals_created_total",
				Help: "Signals persisted into editions.",
			},
		),
		SourceFetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "source_fetch_total",
				Help: "Source fetches by source type and result (ok, error, timeout).",
			},
			[]string{"type", "result"},
		),
		SourceFetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "source_fetch_duration_seconds",
				Help:    "Source fetch latency in seconds.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 12},
			},
			[]string{"type"},
		),
		ClassificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classifications_total",
				Help: "Classifications by path (model, model_strict, heuristic).",
			},
			[]string{"path"},
		),
		EditionCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "edition_cache_hits_total",
				Help: "Edition reads served from cache.",
			},
		),
		EditionCacheMissTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "edition_cache_misses_total",
				Help: "Edition reads that missed the cache.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RunsTotal,
		m.RunDuration,
		m.ItemsFetchedTotal,
		m.SignalsCreatedTotal,
		m.SourceFetchTotal,
		m.SourceFetchDuration,
		m.ClassificationsTotal,
		m.EditionCacheHitsTotal,
		m.EditionCacheMissTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the scrape handler for g, or for the default gatherer
// when g is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
