package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordingHelpers(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveComparison("tfidf", 20*time.Millisecond, 3)
	m.Fallback("embeddings")
	m.Fallback("embeddings")
	m.CheckStarted()
	m.CheckFinished("general", "completed")
	m.CandidateFailed("web")
	m.CacheResult(4, 1)
	m.BreakerState("arxiv", 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ComparisonsTotal.WithLabelValues("tfidf")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FallbacksTotal.WithLabelValues("embeddings")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ChecksInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChecksTotal.WithLabelValues("general", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CandidateFailuresTotal.WithLabelValues("web")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.EmbeddingCacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("arxiv")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveComparison("tfidf", time.Second, 1)
		m.ObserveStage("chunk", time.Millisecond)
		m.Fallback("tfidf")
		m.CheckStarted()
		m.CheckFinished("comparison", "failed")
		m.ObserveSource("web", time.Second)
		m.CandidateFailed("academic")
		m.CacheResult(1, 1)
		m.BreakerState("web", 0)
	})
}
