// Package embedding turns text into fixed-dimension vectors on top of an
// external provider, adding batching, retries, rate limiting and caching.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/smartclaim/triage/internal/domain"
	"github.com/smartclaim/triage/internal/metrics"
)

// Provider is an external embedding API. Implementations must reject empty
// input rather than return a degenerate vector.
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Embedder is what the vector store consumes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

type Config struct {
	Dimension   int
	BatchSize   int
	Timeout     time.Duration
	RPS         float64
	MaxRetries  uint64
	BaseBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 200 * time.Millisecond
	}
	return c
}

// Service is the process-wide Embedder. It is safe for concurrent use.
type Service struct {
	provider Provider
	cfg      Config
	limiter  *rate.Limiter
	logger   *zap.Logger
}

func NewService(provider Provider, cfg Config, logger *zap.Logger) *Service {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	burst := cfg.BatchSize
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
		burst = max(1, int(cfg.RPS))
	}
	return &Service{
		provider: provider,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger.Named("embedding"),
	}
}

func (s *Service) Dimension() int {
	return s.cfg.Dimension
}

func (s *Service) Model() string {
	return s.provider.Model()
}

// Embed returns the vector for a single text. Empty text yields a zero vector.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per text, in order. Empty or whitespace-only
// texts get a zero vector of the configured dimension and are never sent to
// the provider.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		pending []string
		slots   []int
	)
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			out[i] = make([]float32, s.cfg.Dimension)
			continue
		}
		pending = append(pending, text)
		slots = append(slots, i)
	}

	for start := 0; start < len(pending); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(pending))
		vectors, err := s.embedWithRetry(ctx, pending[start:end])
		if err != nil {
			return nil, err
		}
		for j, v := range vectors {
			out[slots[start+j]] = v
		}
	}

	return out, nil
}

func (s *Service) embedWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var vectors [][]float32

	op := func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()

		start := time.Now()
		result, err := s.provider.EmbedBatch(callCtx, batch)
		metrics.ObserveDependency("embedding", start)
		if err != nil {
			return err
		}
		if len(result) != len(batch) {
			return backoff.Permanent(fmt.Errorf("provider returned %d vectors for %d texts", len(result), len(batch)))
		}
		for _, v := range result {
			if len(v) != s.cfg.Dimension {
				return backoff.Permanent(fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, s.cfg.Dimension, len(v)))
			}
		}
		vectors = result
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.BaseBackoff
	policy.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		s.logger.Warn("embedding call failed, retrying",
			zap.Int("batch_size", len(batch)),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(policy, s.cfg.MaxRetries), ctx), notify)
	if err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	return vectors, nil
}
