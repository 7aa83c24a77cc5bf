package embedding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ABNmmd/PFE-FSA/pkg/config"
)

type fakeModel struct {
	dim   int
	err   error
	calls int
	seen  [][]string
}

func (f *fakeModel) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.seen = append(f.seen, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, f.dim)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}

func (f *fakeModel) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func TestNewEmbedderRejectsUnknownProvider(t *testing.T) {
	_, err := NewEmbedder(config.EmbeddingConfig{Provider: "nope"})
	assert.Error(t, err)

	_, err = NewEmbedder(config.EmbeddingConfig{Provider: ProviderOpenAI})
	assert.ErrorContains(t, err, "api key")
}

func TestEmbedderEncode(t *testing.T) {
	e := newEmbedder(&fakeModel{dim: 4}, "test-model", 4)
	v, err := e.Encode(context.Background(), []string{"ab", "abc"})
	require.NoError(t, err)
	require.Len(t, v, 2)
	assert.Equal(t, float32(3), v[1][0])
	assert.Equal(t, "test-model", e.Model())

	empty, err := e.Encode(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEmbedderDimensionMismatch(t *testing.T) {
	e := newEmbedder(&fakeModel{dim: 3}, "m", 4)
	_, err := e.Encode(context.Background(), []string{"x"})
	assert.ErrorContains(t, err, "dimension mismatch")
}

func TestEmbedderProviderError(t *testing.T) {
	e := newEmbedder(&fakeModel{dim: 4, err: errors.New("connection refused")}, "m", 4)
	_, err := e.Encode(context.Background(), []string{"x"})
	assert.ErrorContains(t, err, "connection refused")
}

type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	readErr error
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (s *memStore) MGetBytes(_ context.Context, keys ...string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = s.data[k]
	}
	return out, nil
}

func (s *memStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value.([]byte)
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func TestCachedEncoderServesHits(t *testing.T) {
	model := &fakeModel{dim: 2}
	store := newMemStore()
	c := NewCachedEncoder(newEmbedder(model, "m", 2), store, "m", time.Hour, nil)

	first, err := c.Encode(context.Background(), []string{"one", "three"})
	require.NoError(t, err)
	assert.Len(t, store.data, 2)

	second, err := c.Encode(context.Background(), []string{"three", "four", "one"})
	require.NoError(t, err)
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])
	assert.Equal(t, float32(4), second[1][0])

	require.Len(t, model.seen, 2)
	assert.Equal(t, []string{"four"}, model.seen[1], "only misses reach the model")

	hits, misses := c.Stats()
	assert.EqualValues(t, 2, hits)
	assert.EqualValues(t, 3, misses)
}

func TestCachedEncoderKeysAreNamespacedByModel(t *testing.T) {
	store := newMemStore()
	c := NewCachedEncoder(newEmbedder(&fakeModel{dim: 2}, "m", 2), store, "model-a", time.Hour, nil)
	_, err := c.Encode(context.Background(), []string{"hello"})
	require.NoError(t, err)
	for k := range store.data {
		assert.True(t, strings.HasPrefix(k, "emb:model-a:"), k)
		assert.Len(t, strings.TrimPrefix(k, "emb:model-a:"), 64)
	}
}

func TestCachedEncoderDegradesOnStoreError(t *testing.T) {
	model := &fakeModel{dim: 2}
	store := newMemStore()
	store.readErr = errors.New("redis down")
	c := NewCachedEncoder(newEmbedder(model, "m", 2), store, "m", time.Hour, nil)

	v, err := c.Encode(context.Background(), []string{"abc"})
	require.NoError(t, err)
	assert.Equal(t, float32(3), v[0][0])
	assert.Equal(t, 1, model.calls)
}

func TestCachedEncoderInvalidate(t *testing.T) {
	store := newMemStore()
	store.data["other:key"] = []byte{1, 2, 3, 4}
	c := NewCachedEncoder(newEmbedder(&fakeModel{dim: 2}, "m", 2), store, "m", time.Hour, nil)
	_, err := c.Encode(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	n, err := c.Invalidate(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Contains(t, store.data, "other:key")
}

func TestVectorCodecRoundTrip(t *testing.T) {
	v := []float32{0, -1.5, 3.25}
	got, ok := decode(encode(v))
	require.True(t, ok)
	assert.Equal(t, v, got)

	_, ok = decode([]byte{1, 2, 3})
	assert.False(t, ok)
}

type blockingEncoder struct {
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (b *blockingEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	close(b.started)
	<-b.release
	b.ctxErr <- ctx.Err()
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 2}
	}
	return out, nil
}

func TestCachedEncoderFlightOutlivesCancelledCaller(t *testing.T) {
	enc := &blockingEncoder{started: make(chan struct{}), release: make(chan struct{}), ctxErr: make(chan error, 1)}
	store := newMemStore()
	c := NewCachedEncoder(enc, store, "m", time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Encode(ctx, []string{"shared text"})
		errCh <- err
	}()
	<-enc.started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(enc.release)
	assert.NoError(t, <-enc.ctxErr, "the shared call keeps running")
	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.data) == 1
	}, time.Second, 5*time.Millisecond)

	v, err := c.Encode(context.Background(), []string{"shared text"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, v[0])
}
