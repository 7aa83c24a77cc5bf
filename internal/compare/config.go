package compare

import (
	"fmt"

	"github.com/ABNmmd/PFE-FSA/internal/chunker"
	"github.com/ABNmmd/PFE-FSA/internal/matcher"
	"github.com/ABNmmd/PFE-FSA/internal/similarity"
	"github.com/ABNmmd/PFE-FSA/internal/textproc"
	"github.com/ABNmmd/PFE-FSA/pkg/config"
	"github.com/ABNmmd/PFE-FSA/pkg/metrics"
)

// NewFromConfig builds the engine and comparator described by cfg. method
// overrides cfg.Detection.Method when not empty; enc may be nil for tfidf.
func NewFromConfig(cfg *config.Config, method string, enc similarity.Encoder, m *metrics.Metrics) (*Comparator, error) {
	if method == "" {
		method = cfg.Detection.Method
	}
	policy, err := matcher.ParsePolicy(cfg.Detection.DuplicatePolicy)
	if err != nil {
		return nil, fmt.Errorf("detection config: %w", err)
	}

	engine := similarity.NewEngine(similarity.Config{
		Method: method,
		Lexical: similarity.LexicalConfig{
			MaxFeatures: cfg.Lexical.MaxFeatures,
			NgramMin:    cfg.Lexical.NgramMin,
			NgramMax:    cfg.Lexical.NgramMax,
			Stem:        cfg.Lexical.Stem,
		},
		Encoder:      enc,
		BatchSize:    cfg.Embedding.BatchSize,
		UniformFloor: cfg.Detection.UniformFloor,
	}, m)

	ch := chunker.New(
		chunker.WithMaxChunkSize(cfg.Chunking.MaxChunkSize),
		chunker.WithMinChunkSize(cfg.Chunking.MinChunkSize),
		chunker.WithSplitter(textproc.NewSplitter(cfg.Chunking.MinSentenceLength)),
	)

	return New(engine,
		WithChunker(ch),
		WithThreshold(cfg.Detection.Threshold),
		WithDuplicatePolicy(policy),
		WithMinMatchLength(cfg.Chunking.MinMatchLength),
		WithMetrics(m),
	), nil
}
