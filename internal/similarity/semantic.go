package similarity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// DefaultBatchSize is the number of chunks sent to the encoder per call.
const DefaultBatchSize = 32

// ErrEncoderUnavailable is returned when every batch of an encoding run fails.
var ErrEncoderUnavailable = errors.New("embedding encoder unavailable")

// Encoder turns texts into fixed-dimension vectors, one per input, in order.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

// Semantic vectorises chunks with an Encoder.
type Semantic struct {
	encoder   Encoder
	batchSize int
	logger    *slog.Logger
}

// NewSemantic returns a Semantic vectorizer. batchSize <= 0 uses
// DefaultBatchSize.
func NewSemantic(enc Encoder, batchSize int) *Semantic {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Semantic{
		encoder:   enc,
		batchSize: batchSize,
		logger:    slog.Default().With("component", "semantic-vectorizer"),
	}
}

func (s *Semantic) Name() string { return MethodEmbeddings }

func (s *Semantic) Similarity(ctx context.Context, a, b []string) (Matrix, error) {
	va, vb, err := s.Vectorize(ctx, a, b)
	if err != nil {
		return Matrix{}, err
	}
	return CosineMatrix(va, vb), nil
}

// Vectorize encodes both sides.
func (s *Semantic) Vectorize(ctx context.Context, a, b []string) ([][]float64, [][]float64, error) {
	va, err := s.EncodeAll(ctx, a)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding first document: %w", err)
	}
	vb, err := s.EncodeAll(ctx, b)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding second document: %w", err)
	}
	return va, vb, nil
}

// EncodeAll encodes texts in batches. A failed batch contributes zero vectors
// sized like the successful ones; when every batch fails the call fails.
func (s *Semantic) EncodeAll(ctx context.Context, texts []string) ([][]float64, error) {
	if s.encoder == nil {
		return nil, ErrEncoderUnavailable
	}
	out := make([][]float64, len(texts))
	failed := make([]bool, len(texts))
	dim, ok := 0, 0
	var lastErr error
	for start := 0; start < len(texts); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+s.batchSize, len(texts))
		vecs, err := s.encoder.Encode(ctx, texts[start:end])
		if err == nil && len(vecs) != end-start {
			err = fmt.Errorf("encoder returned %d vectors for %d texts", len(vecs), end-start)
		}
		if err != nil {
			lastErr = err
			s.logger.Warn("embedding batch failed, using zero vectors",
				"batch_start", start, "batch_size", end-start, "error", err)
			for i := start; i < end; i++ {
				failed[i] = true
			}
			continue
		}
		ok++
		for i, v := range vecs {
			row := make([]float64, len(v))
			for k, x := range v {
				row[k] = float64(x)
			}
			out[start+i] = row
			if dim == 0 {
				dim = len(v)
			}
		}
	}
	if len(texts) > 0 && ok == 0 {
		return nil, fmt.Errorf("%w: %v", ErrEncoderUnavailable, lastErr)
	}
	for i := range out {
		if failed[i] {
			out[i] = make([]float64, dim)
		}
	}
	return out, nil
}

// Uniform is the last rung of the ladder: every pair scores Floor.
type Uniform struct {
	Floor float64
}

// DefaultUniformFloor is the similarity assigned when no vectorizer works.
const DefaultUniformFloor = 0.01

func (Uniform) Name() string { return MethodUniform }

func (u Uniform) Similarity(_ context.Context, a, b []string) (Matrix, error) {
	return Filled(len(a), len(b), clamp01(u.Floor)), nil
}
