// Package compare runs the two-document comparison pipeline: encoding
// repair, chunking, similarity scoring and match detection. The same
// Comparator also serves the multi-source checker, which prepares its target
// document once and compares it against many candidates.
package compare

import (
	"context"
	"log/slog"
	"time"

	"github.com/ABNmmd/PFE-FSA/internal/chunker"
	"github.com/ABNmmd/PFE-FSA/internal/matcher"
	"github.com/ABNmmd/PFE-FSA/internal/similarity"
	"github.com/ABNmmd/PFE-FSA/internal/textproc"
	"github.com/ABNmmd/PFE-FSA/pkg/metrics"
	"github.com/ABNmmd/PFE-FSA/pkg/tracing"
)

// Stats describes the inputs of a comparison.
type Stats struct {
	Doc1Chunks int     `json:"doc1_chunks"`
	Doc2Chunks int     `json:"doc2_chunks"`
	Threshold  float64 `json:"threshold"`
	Method     string  `json:"method"`
}

// Result is the outcome of one comparison.
type Result struct {
	Scores  similarity.Result `json:"similarity_scores"`
	Matches []matcher.Match   `json:"matches"`
	Stats   Stats             `json:"stats"`
}

// Comparator is safe for concurrent use.
type Comparator struct {
	engine    *similarity.Engine
	chunker   *chunker.Chunker
	detector  matcher.Detector
	threshold float64
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithThreshold sets the threshold used when a call passes nil.
func WithThreshold(t float64) Option {
	return func(c *Comparator) {
		if t > 0 && t <= 1 {
			c.threshold = t
		}
	}
}

// WithDuplicatePolicy sets the match de-duplication policy.
func WithDuplicatePolicy(p matcher.DuplicatePolicy) Option {
	return func(c *Comparator) { c.detector.Policy = p }
}

// WithMinMatchLength sets the triviality length bound for matches.
func WithMinMatchLength(n int) Option {
	return func(c *Comparator) {
		if n > 0 {
			c.detector.Trivial = textproc.Trivial{MinLength: n}
		}
	}
}

// WithChunker replaces the default comparison chunker.
func WithChunker(ch *chunker.Chunker) Option {
	return func(c *Comparator) {
		if ch != nil {
			c.chunker = ch
		}
	}
}

// WithMetrics records comparisons and stage timings.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Comparator) { c.metrics = m }
}

// New returns a Comparator over engine.
func New(engine *similarity.Engine, opts ...Option) *Comparator {
	c := &Comparator{
		engine:    engine,
		chunker:   chunker.New(),
		detector:  matcher.Detector{Trivial: textproc.DefaultTrivial},
		threshold: matcher.DefaultThreshold,
		logger:    slog.Default().With("component", "comparator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Method reports the configured similarity method.
func (c *Comparator) Method() string {
	return c.engine.Method()
}

// Threshold resolves an optional per-call threshold.
func (c *Comparator) Threshold(t *float64) float64 {
	if t == nil {
		return c.threshold
	}
	return *t
}

// Compare compares two raw texts. It never fails: unusable input yields zero
// scores and no matches.
func (c *Comparator) Compare(ctx context.Context, text1, text2 string, threshold *float64) Result {
	start := time.Now()
	ctx, root := tracing.StartChildSpan(ctx, "compare")
	defer func() {
		root.End()
		root.Log(c.logger)
	}()
	th := c.Threshold(threshold)

	a := c.chunk(ctx, "chunk_doc1", text1)
	b := c.chunk(ctx, "chunk_doc2", text2)

	_, span := tracing.StartChildSpan(ctx, "similarity")
	scores := c.engine.Similarity(ctx, a, b)
	span.SetAttr("method", scores.Method)
	c.metrics.ObserveStage("similarity", span.End())

	res := c.detect(ctx, a, b, scores, th)
	root.SetAttr("matches", len(res.Matches))
	c.metrics.ObserveComparison(scores.Method, time.Since(start), len(res.Matches))
	return res
}

// Target is a document chunked and vectorised once for repeated comparison.
type Target struct {
	Chunks   []string
	prepared *similarity.Prepared
}

// PrepareTarget chunks text and pre-computes its vectors. Only context
// cancellation is reported as an error.
func (c *Comparator) PrepareTarget(ctx context.Context, text string) (*Target, error) {
	chunks := c.chunk(ctx, "chunk_target", text)
	_, span := tracing.StartChildSpan(ctx, "prepare_target")
	p, err := c.engine.Prepare(ctx, chunks)
	c.metrics.ObserveStage("prepare_target", span.End())
	if err != nil {
		return nil, err
	}
	return &Target{Chunks: chunks, prepared: p}, nil
}

// CompareTarget compares a prepared target with a candidate text.
func (c *Comparator) CompareTarget(ctx context.Context, t *Target, candidate string, threshold *float64) Result {
	start := time.Now()
	th := c.Threshold(threshold)
	if t == nil {
		t = &Target{}
	}
	b := c.chunk(ctx, "chunk_candidate", candidate)

	_, span := tracing.StartChildSpan(ctx, "similarity")
	scores := c.engine.SimilarityPrepared(ctx, t.prepared, b)
	c.metrics.ObserveStage("similarity", span.End())

	res := c.detect(ctx, t.Chunks, b, scores, th)
	c.metrics.ObserveComparison(scores.Method, time.Since(start), len(res.Matches))
	return res
}

func (c *Comparator) chunk(ctx context.Context, stage, text string) []string {
	_, span := tracing.StartChildSpan(ctx, stage)
	chunks := c.chunker.ForComparison(textproc.FixEncoding(text))
	span.SetAttr("chunks", len(chunks))
	c.metrics.ObserveStage("chunk", span.End())
	return chunks
}

func (c *Comparator) detect(ctx context.Context, a, b []string, scores similarity.Result, th float64) Result {
	_, span := tracing.StartChildSpan(ctx, "match")
	matches := c.detector.Detect(a, b, scores.Matrix, th)
	span.SetAttr("matches", len(matches))
	c.metrics.ObserveStage("match", span.End())

	return Result{
		Scores:  scores,
		Matches: matches,
		Stats: Stats{
			Doc1Chunks: len(a),
			Doc2Chunks: len(b),
			Threshold:  th,
			Method:     scores.Method,
		},
	}
}

// Sensitivity levels accepted by SensitivityThreshold.
const (
	SensitivityLow    = "low"
	SensitivityMedium = "medium"
	SensitivityHigh   = "high"
)

// SensitivityThreshold maps a sensitivity level to a match threshold.
// Higher sensitivity reports weaker matches. Unknown levels are medium.
func SensitivityThreshold(s string) float64 {
	switch s {
	case SensitivityLow:
		return 0.80
	case SensitivityHigh:
		return 0.60
	default:
		return matcher.DefaultThreshold
	}
}

// Float returns a pointer to v, for optional thresholds.
func Float(v float64) *float64 { return &v }
