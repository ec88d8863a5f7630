package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "claimd:emb:"

// CachedProvider memoizes provider results in Redis keyed by model and text
// hash. Cache failures are logged and fall through to the provider.
type CachedProvider struct {
	next   Provider
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedProvider(next Provider, rdb redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{next: next, rdb: rdb, ttl: ttl, logger: logger.Named("embedding_cache")}
}

func (c *CachedProvider) Model() string {
	return c.next.Model()
}

func (c *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	out := make([][]float32, len(texts))
	cached, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("embedding cache read failed", zap.Error(err))
		cached = nil
	}
	for i, v := range cached {
		if s, ok := v.(string); ok {
			if vec, ok := decodeVector([]byte(s)); ok {
				out[i] = vec
			}
		}
	}

	var (
		missTexts []string
		missIdx   []int
	)
	for i, v := range out {
		if v == nil {
			missTexts = append(missTexts, texts[i])
			missIdx = append(missIdx, i)
		}
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.next.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return fresh, nil
	}

	pipe := c.rdb.Pipeline()
	for j, vec := range fresh {
		i := missIdx[j]
		out[i] = vec
		pipe.Set(ctx, keys[i], encodeVector(vec), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}

	return out, nil
}

func (c *CachedProvider) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return cacheKeyPrefix + c.next.Model() + ":" + hex.EncodeToString(sum[:])
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, bool) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, false
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, true
}
