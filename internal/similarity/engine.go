// Package similarity turns two chunk lists into a similarity matrix and the
// symmetric document scores derived from it. Vectorisation strategies are
// tried in a fixed order, so a failing embedding backend degrades to TF-IDF
// and finally to a uniform floor instead of failing the comparison.
package similarity

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ABNmmd/PFE-FSA/pkg/metrics"
)

// Method names, as stored on reports.
const (
	MethodTFIDF      = "tfidf"
	MethodEmbeddings = "embeddings"
	MethodUniform    = "uniform"
	MethodNone       = "none"
)

// Strategy produces a similarity matrix for a chunk pair.
type Strategy interface {
	Name() string
	Similarity(ctx context.Context, a, b []string) (Matrix, error)
}

// Result holds the matrix and the scores derived from it.
type Result struct {
	Matrix      Matrix  `json:"-"`
	Doc1Score   float64 `json:"doc1_score"`
	Doc2Score   float64 `json:"doc2_score"`
	GlobalScore float64 `json:"global_score"`
	Percentage  float64 `json:"percentage"`
	Method      string  `json:"-"`
}

// Config selects and tunes the strategies.
type Config struct {
	Method       string
	Lexical      LexicalConfig
	Encoder      Encoder
	BatchSize    int
	UniformFloor float64
}

// Engine computes similarity results. It is safe for concurrent use.
type Engine struct {
	ladder   []Strategy
	semantic *Semantic
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewEngine builds the strategy ladder once. The embeddings method requires
// an Encoder; without one it starts at TF-IDF.
func NewEngine(cfg Config, m *metrics.Metrics) *Engine {
	floor := cfg.UniformFloor
	if floor <= 0 {
		floor = DefaultUniformFloor
	}
	e := &Engine{
		metrics: m,
		logger:  slog.Default().With("component", "similarity-engine"),
	}
	if cfg.Method == MethodEmbeddings && cfg.Encoder != nil {
		e.semantic = NewSemantic(cfg.Encoder, cfg.BatchSize)
		e.ladder = append(e.ladder, e.semantic)
	} else if cfg.Method == MethodEmbeddings {
		e.logger.Warn("embeddings method requested without an encoder, using tfidf")
	}
	e.ladder = append(e.ladder, NewLexical(cfg.Lexical), Uniform{Floor: floor})
	return e
}

// NewEngineWithLadder builds an engine from an explicit ladder. The last
// strategy is expected never to fail.
func NewEngineWithLadder(m *metrics.Metrics, ladder ...Strategy) *Engine {
	return &Engine{
		ladder:  ladder,
		metrics: m,
		logger:  slog.Default().With("component", "similarity-engine"),
	}
}

// Method reports the configured (first) strategy.
func (e *Engine) Method() string {
	if len(e.ladder) == 0 {
		return MethodNone
	}
	return e.ladder[0].Name()
}

// Similarity compares two chunk lists. Whitespace-only chunks are skipped by
// the strategies but keep their row or column, which stays zero, so the
// matrix is always len(a) x len(b). When either side has nothing to compare
// the result is a 1x1 zero matrix with method "none".
func (e *Engine) Similarity(ctx context.Context, a, b []string) Result {
	ka, ia := nonBlank(a)
	kb, ib := nonBlank(b)
	if len(ka) == 0 || len(kb) == 0 {
		return emptyResult()
	}
	m, method := e.run(ctx, e.ladder, ka, kb)
	return newResult(scatter(m, ia, ib, len(a), len(b)), method)
}

func (e *Engine) run(ctx context.Context, ladder []Strategy, a, b []string) (Matrix, string) {
	for _, s := range ladder {
		start := time.Now()
		m, err := s.Similarity(ctx, a, b)
		if err != nil {
			e.logger.Warn("similarity strategy failed, falling back",
				"method", s.Name(), "error", err)
			e.metrics.Fallback(s.Name())
			continue
		}
		e.metrics.ObserveStage("vectorize_"+s.Name(), time.Since(start))
		return m.Conform(len(a), len(b)), s.Name()
	}
	e.logger.Error("every similarity strategy failed", "chunks_a", len(a), "chunks_b", len(b))
	return NewMatrix(len(a), len(b)), MethodNone
}

// Prepared is a chunk list whose vectors are computed once and reused for
// every comparison against it.
type Prepared struct {
	Chunks  []string
	kept    []string
	index   []int
	vectors [][]float64
}

// Prepare encodes chunks when the engine starts with the embeddings method.
// Lexical preparation keeps only the chunks since TF-IDF is fitted per pair.
func (e *Engine) Prepare(ctx context.Context, chunks []string) (*Prepared, error) {
	p := &Prepared{Chunks: chunks}
	p.kept, p.index = nonBlank(chunks)
	if e.semantic == nil || len(p.kept) == 0 {
		return p, nil
	}
	v, err := e.semantic.EncodeAll(ctx, p.kept)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Warn("could not pre-encode target, comparisons will re-encode", "error", err)
		e.metrics.Fallback(MethodEmbeddings)
		return p, nil
	}
	p.vectors = v
	return p, nil
}

// SimilarityPrepared compares a prepared target with b, reusing the target's
// embeddings when present. The matrix is len(p.Chunks) x len(b).
func (e *Engine) SimilarityPrepared(ctx context.Context, p *Prepared, b []string) Result {
	if p == nil {
		return emptyResult()
	}
	kb, ib := nonBlank(b)
	if len(p.kept) == 0 || len(kb) == 0 {
		return emptyResult()
	}
	full := func(m Matrix, method string) Result {
		return newResult(scatter(m, p.index, ib, len(p.Chunks), len(b)), method)
	}
	if p.vectors == nil || e.semantic == nil {
		return full(e.run(ctx, e.ladder, p.kept, kb))
	}

	start := time.Now()
	vb, err := e.semantic.EncodeAll(ctx, kb)
	if err != nil {
		e.logger.Warn("encoding candidate failed, falling back", "error", err)
		e.metrics.Fallback(MethodEmbeddings)
		return full(e.run(ctx, e.ladder[1:], p.kept, kb))
	}
	e.metrics.ObserveStage("vectorize_"+MethodEmbeddings, time.Since(start))
	return full(CosineMatrix(p.vectors, vb).Conform(len(p.kept), len(kb)), MethodEmbeddings)
}

func newResult(m Matrix, method string) Result {
	d1, d2, g := Scores(m)
	return Result{
		Matrix:      m,
		Doc1Score:   d1,
		Doc2Score:   d2,
		GlobalScore: g,
		Percentage:  clamp(g*100, 0, 100),
		Method:      method,
	}
}

func emptyResult() Result {
	return Result{Matrix: NewMatrix(1, 1), Method: MethodNone}
}

// nonBlank returns the chunks with visible text and their original indices.
func nonBlank(chunks []string) ([]string, []int) {
	kept := make([]string, 0, len(chunks))
	index := make([]int, 0, len(chunks))
	for i, c := range chunks {
		if strings.TrimSpace(c) != "" {
			kept = append(kept, c)
			index = append(index, i)
		}
	}
	return kept, index
}

// scatter places the cells of a compact matrix, computed over the kept
// chunks, at their original row and column indices in a rows x cols matrix.
func scatter(m Matrix, rowIdx, colIdx []int, rows, cols int) Matrix {
	if len(rowIdx) == rows && len(colIdx) == cols {
		return m
	}
	out := NewMatrix(rows, cols)
	for i, r := range rowIdx {
		for j, c := range colIdx {
			out.Set(r, c, m.At(i, j))
		}
	}
	return out
}
