package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/domain"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	args := m.Called(ctx, system, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockGenerator) Name() string {
	return "mock"
}

func TestBreakerGenerator_PassesThrough(t *testing.T) {
	next := new(MockGenerator)
	next.On("Generate", mock.Anything, "sys", "prompt").Return("answer", nil)

	g := NewBreakerGenerator(next, BreakerConfig{}, zap.NewNop())

	text, err := g.Generate(context.Background(), "sys", "prompt")

	require.NoError(t, err)
	assert.Equal(t, "answer", text)
	assert.Equal(t, "mock", g.Name())
	assert.Equal(t, "closed", g.State())
}

func TestBreakerGenerator_AppliesTimeout(t *testing.T) {
	next := new(MockGenerator)
	next.On("Generate", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= 50*time.Millisecond
	}), "", "prompt").Return("ok", nil)

	g := NewBreakerGenerator(next, BreakerConfig{Timeout: 50 * time.Millisecond}, zap.NewNop())

	_, err := g.Generate(context.Background(), "", "prompt")

	require.NoError(t, err)
	next.AssertExpectations(t)
}

func TestBreakerGenerator_OpensAfterFailures(t *testing.T) {
	next := new(MockGenerator)
	next.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("upstream 500"))

	g := NewBreakerGenerator(next, BreakerConfig{OpenFor: time.Minute}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := g.Generate(ctx, "", "p")
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrGeneratorUnavailable)
	}

	_, err := g.Generate(ctx, "", "p")

	assert.ErrorIs(t, err, domain.ErrGeneratorUnavailable)
	assert.Equal(t, "open", g.State())
	next.AssertNumberOfCalls(t, "Generate", 3)
}
