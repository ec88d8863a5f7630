package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/domain"
)

// fakeProvider returns [len(text), 1, 0, ...] and can fail a number of calls.
type fakeProvider struct {
	mu       sync.Mutex
	dim      int
	failures int
	calls    int
	seen     []string
}

func (f *fakeProvider) Model() string { return "fake-model" }

func (f *fakeProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("503 service unavailable")
	}
	f.seen = append(f.seen, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, f.dim)
		v[0] = float32(len(t))
		if f.dim > 1 {
			v[1] = 1
		}
		out[i] = v
	}
	return out, nil
}

func testConfig(dim int) Config {
	return Config{Dimension: dim, BatchSize: 2, Timeout: time.Second, BaseBackoff: time.Millisecond, MaxRetries: 3}
}

func TestService_EmptyTextGetsZeroVector(t *testing.T) {
	p := &fakeProvider{dim: 4}
	s := NewService(p, testConfig(4), zap.NewNop())

	vectors, err := s.EmbedBatch(context.Background(), []string{"abc", "", "  ", "de"})

	require.NoError(t, err)
	require.Len(t, vectors, 4)
	assert.Equal(t, []float32{3, 1, 0, 0}, vectors[0])
	assert.Equal(t, []float32{0, 0, 0, 0}, vectors[1])
	assert.Equal(t, []float32{0, 0, 0, 0}, vectors[2])
	assert.Equal(t, []float32{2, 1, 0, 0}, vectors[3])
	assert.Equal(t, []string{"abc", "de"}, p.seen)
}

func TestService_Batches(t *testing.T) {
	p := &fakeProvider{dim: 2}
	s := NewService(p, testConfig(2), zap.NewNop())

	vectors, err := s.EmbedBatch(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})

	require.NoError(t, err)
	assert.Len(t, vectors, 5)
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, float32(5), vectors[4][0])
}

func TestService_RetriesTransientFailures(t *testing.T) {
	p := &fakeProvider{dim: 2, failures: 2}
	s := NewService(p, testConfig(2), zap.NewNop())

	v, err := s.Embed(context.Background(), "leak")

	require.NoError(t, err)
	assert.Equal(t, []float32{4, 1}, v)
	assert.Equal(t, 3, p.calls)
}

func TestService_GivesUpAfterMaxRetries(t *testing.T) {
	p := &fakeProvider{dim: 2, failures: 100}
	s := NewService(p, testConfig(2), zap.NewNop())

	_, err := s.Embed(context.Background(), "leak")

	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Equal(t, 4, p.calls)
}

func TestService_DimensionMismatchIsNotRetried(t *testing.T) {
	p := &fakeProvider{dim: 3}
	s := NewService(p, testConfig(2), zap.NewNop())

	_, err := s.Embed(context.Background(), "leak")

	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, 1, p.calls)
}

func TestService_Metadata(t *testing.T) {
	s := NewService(&fakeProvider{dim: 8}, Config{Dimension: 8}, nil)

	assert.Equal(t, 8, s.Dimension())
	assert.Equal(t, "fake-model", s.Model())
}

func TestCachedProvider(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	p := &fakeProvider{dim: 3}
	cached := NewCachedProvider(p, rdb, time.Hour, zap.NewNop())
	ctx := context.Background()

	first, err := cached.EmbedBatch(ctx, []string{"pump", "valve"})
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls)

	second, err := cached.EmbedBatch(ctx, []string{"valve", "pump", "belt"})
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls)
	assert.Equal(t, []string{"pump", "valve", "belt"}, p.seen)

	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[1])
	assert.Equal(t, []float32{4, 1, 0}, second[2])

	mr.FastForward(2 * time.Hour)
	_, err = cached.EmbedBatch(ctx, []string{"pump"})
	require.NoError(t, err)
	assert.Equal(t, 3, p.calls)
}

func TestCachedProvider_RedisDownFallsThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	p := &fakeProvider{dim: 2}
	cached := NewCachedProvider(p, rdb, time.Hour, zap.NewNop())

	vectors, err := cached.EmbedBatch(context.Background(), []string{"abc"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 1}}, vectors)
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0.25, -1.5, 3}

	decoded, ok := decodeVector(encodeVector(v))

	require.True(t, ok)
	assert.Equal(t, v, decoded)

	_, ok = decodeVector([]byte{1, 2, 3})
	assert.False(t, ok)
}
