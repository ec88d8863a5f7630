// Package llm defines the chat-style generation interface used for answer
// synthesis and reranking.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/domain"
	"github.com/smartclaim/triage/internal/metrics"
)

// Generator produces a completion for prompt under a system instruction.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Name() string
}

type BreakerConfig struct {
	Timeout     time.Duration
	MaxRequests uint32
	OpenFor     time.Duration
}

// BreakerGenerator wraps a Generator with a per-call timeout and a circuit
// breaker. While the breaker is open calls fail fast with
// domain.ErrGeneratorUnavailable.
type BreakerGenerator struct {
	next    Generator
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewBreakerGenerator(next Generator, cfg BreakerConfig, logger *zap.Logger) *BreakerGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	logger = logger.Named("llm")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Minute,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("llm circuit breaker state change",
				zap.String("generator", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &BreakerGenerator{next: next, timeout: cfg.Timeout, cb: cb, logger: logger}
}

func (b *BreakerGenerator) Name() string {
	return b.next.Name()
}

func (b *BreakerGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()

		start := time.Now()
		text, err := b.next.Generate(callCtx, system, prompt)
		metrics.ObserveDependency("llm", start)
		return text, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %v", domain.ErrGeneratorUnavailable, err)
		}
		return "", err
	}
	return out.(string), nil
}

// State reports the breaker state for health output.
func (b *BreakerGenerator) State() string {
	return b.cb.State().String()
}
