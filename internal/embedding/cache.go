package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ABNmmd/PFE-FSA/internal/similarity"
	"github.com/ABNmmd/PFE-FSA/pkg/metrics"
)

const keyPrefix = "emb:"

// flightTimeout bounds a shared encoder call, which outlives the caller that
// started it.
const flightTimeout = 2 * time.Minute

// Store is the subset of the Redis client the cache needs.
type Store interface {
	MGetBytes(ctx context.Context, keys ...string) ([][]byte, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// CachedEncoder serves embeddings from Redis and encodes only the misses.
// Concurrent requests for the same set of misses share one encoder call.
// Cache failures degrade to direct encoding.
type CachedEncoder struct {
	next    similarity.Encoder
	store   Store
	model   string
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	timeout time.Duration
}

// NewCachedEncoder decorates next. model namespaces the keys so switching
// models never serves stale vectors.
func NewCachedEncoder(next similarity.Encoder, store Store, model string, ttl time.Duration, m *metrics.Metrics) *CachedEncoder {
	return &CachedEncoder{
		next:    next,
		store:   store,
		model:   model,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "embedding-cache"),
		timeout: flightTimeout,
	}
}

func (c *CachedEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	out := make([][]float32, len(texts))
	cached, err := c.store.MGetBytes(ctx, keys...)
	if err != nil {
		c.logger.Warn("embedding cache read failed", "keys", len(keys), "error", err)
		cached = nil
	}
	var missIdx []int
	for i := range texts {
		if i < len(cached) && cached[i] != nil {
			if v, ok := decode(cached[i]); ok {
				out[i] = v
				continue
			}
		}
		missIdx = append(missIdx, i)
	}

	hits := len(texts) - len(missIdx)
	c.hits.Add(int64(hits))
	c.misses.Add(int64(len(missIdx)))
	c.metrics.CacheResult(hits, len(missIdx))
	if len(missIdx) == 0 {
		return out, nil
	}

	missTexts := make([]string, len(missIdx))
	missKeys := make([]string, len(missIdx))
	for j, i := range missIdx {
		missTexts[j] = texts[i]
		missKeys[j] = keys[i]
	}

	// The flight is shared, so it runs detached from whichever caller started
	// it; each caller still stops waiting when its own ctx ends.
	flight := c.group.DoChan(strings.Join(missKeys, ","), func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		vecs, err := c.next.Encode(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(missTexts) {
			return nil, fmt.Errorf("encoder returned %d vectors for %d texts", len(vecs), len(missTexts))
		}
		for j, v := range vecs {
			if err := c.store.Set(ctx, missKeys[j], encode(v), c.ttl); err != nil {
				c.logger.Warn("embedding cache write failed", "key", missKeys[j], "error", err)
			}
		}
		return vecs, nil
	})
	var res singleflight.Result
	select {
	case res = <-flight:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	vecs := res.Val.([][]float32)
	for j, i := range missIdx {
		out[i] = vecs[j]
	}
	return out, nil
}

// Invalidate removes every cached embedding.
func (c *CachedEncoder) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("invalidating embedding cache: %w", err)
	}
	c.logger.Info("embedding cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *CachedEncoder) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *CachedEncoder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return keyPrefix + c.model + ":" + hex.EncodeToString(sum[:])
}

func encode(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decode(b []byte) ([]float32, bool) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, false
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, true
}
