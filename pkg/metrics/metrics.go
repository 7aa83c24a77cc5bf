// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping. Recording helpers are
// nil-safe so library code can run without a registry (tests, the CLI).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	HTTPRequestsInFlight   prometheus.Gauge
	ComparisonsTotal       *prometheus.CounterVec
	ComparisonDuration     *prometheus.HistogramVec
	StageDuration          *prometheus.HistogramVec
	FallbacksTotal         *prometheus.CounterVec
	MatchesFound           prometheus.Histogram
	ChecksTotal            *prometheus.CounterVec
	ChecksInFlight         prometheus.Gauge
	SourceDuration         *prometheus.HistogramVec
	CandidateFailuresTotal *prometheus.CounterVec
	EmbeddingCacheHits     prometheus.Counter
	EmbeddingCacheMisses   prometheus.Counter
	CircuitBreakerState    *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. A nil reg means
// the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
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
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ComparisonsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plagiarism_comparisons_total",
				Help: "Pairwise comparisons by the method that produced the matrix.",
			},
			[]string{"method"},
		),
		ComparisonDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plagiarism_comparison_duration_seconds",
				Help:    "End-to-end duration of a pairwise comparison.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plagiarism_stage_duration_seconds",
				Help:    "Duration of pipeline stages (normalize, chunk, similarity, match).",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"stage"},
		),
		FallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plagiarism_fallbacks_total",
				Help: "Degradations by the strategy that failed.",
			},
			[]string{"from"},
		),
		MatchesFound: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plagiarism_matches_per_comparison",
				Help:    "Number of matches emitted per comparison.",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
		),
		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plagiarism_checks_total",
				Help: "Background runs by kind and terminal status.",
			},
			[]string{"kind", "status"},
		),
		ChecksInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "plagiarism_checks_in_flight",
				Help: "Background runs currently executing.",
			},
		),
		SourceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plagiarism_source_duration_seconds",
				Help:    "Time spent checking one source category.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"source"},
		),
		CandidateFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plagiarism_candidate_failures_total",
				Help: "Candidates skipped because retrieval or comparison failed.",
			},
			[]string{"source"},
		),
		EmbeddingCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "embedding_cache_hits_total",
				Help: "Chunk embeddings served from Redis.",
			},
		),
		EmbeddingCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "embedding_cache_misses_total",
				Help: "Chunk embeddings computed by the provider.",
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
		m.ComparisonsTotal,
		m.ComparisonDuration,
		m.StageDuration,
		m.FallbacksTotal,
		m.MatchesFound,
		m.ChecksTotal,
		m.ChecksInFlight,
		m.SourceDuration,
		m.CandidateFailuresTotal,
		m.EmbeddingCacheHits,
		m.EmbeddingCacheMisses,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveComparison records one finished comparison.
func (m *Metrics) ObserveComparison(method string, d time.Duration, matches int) {
	if m == nil {
		return
	}
	m.ComparisonsTotal.WithLabelValues(method).Inc()
	m.ComparisonDuration.WithLabelValues(method).Observe(d.Seconds())
	m.MatchesFound.Observe(float64(matches))
}

// ObserveStage records the duration of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Fallback counts a degradation away from the named strategy.
func (m *Metrics) Fallback(from string) {
	if m == nil {
		return
	}
	m.FallbacksTotal.WithLabelValues(from).Inc()
}

// CheckStarted and CheckFinished bracket one background run.
func (m *Metrics) CheckStarted() {
	if m == nil {
		return
	}
	m.ChecksInFlight.Inc()
}

func (m *Metrics) CheckFinished(kind, status string) {
	if m == nil {
		return
	}
	m.ChecksInFlight.Dec()
	m.ChecksTotal.WithLabelValues(kind, status).Inc()
}

// ObserveSource records the time spent on one source category.
func (m *Metrics) ObserveSource(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.SourceDuration.WithLabelValues(source).Observe(d.Seconds())
}

// CandidateFailed counts a skipped candidate.
func (m *Metrics) CandidateFailed(source string) {
	if m == nil {
		return
	}
	m.CandidateFailuresTotal.WithLabelValues(source).Inc()
}

// CacheResult counts embedding cache hits and misses.
func (m *Metrics) CacheResult(hits, misses int) {
	if m == nil {
		return
	}
	m.EmbeddingCacheHits.Add(float64(hits))
	m.EmbeddingCacheMisses.Add(float64(misses))
}

// BreakerState publishes a circuit breaker transition.
func (m *Metrics) BreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
