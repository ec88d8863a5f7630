package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_NoDSNIsNoop(t *testing.T) {
	flush, err := Init(Config{})
	require.NoError(t, err)
	require.NotNil(t, flush)
	flush()
}

func TestSampleRate(t *testing.T) {
	assert.Equal(t, 0.25, sampleRate(nil, 0.25))
	assert.Equal(t, 0.25, sampleRate(&sentry.Span{Name: "POST /query"}, 0.25))
	assert.Equal(t, 0.0, sampleRate(&sentry.Span{Name: "GET /health"}, 0.25))
	assert.Equal(t, 0.0, sampleRate(&sentry.Span{Name: "GET /metrics"}, 0.25))

	child := &sentry.Span{Name: "vectorstore.search", ParentSpanID: sentry.SpanID{1}, Sampled: sentry.SampledTrue}
	assert.Equal(t, 1.0, sampleRate(child, 0.25))
	child.Sampled = sentry.SampledFalse
	assert.Equal(t, 0.0, sampleRate(child, 0.25))
}

func TestSpan_NilSafe(t *testing.T) {
	var span *Span
	span.Record("chunks", 3)
	span.Fail(errors.New("boom"))
	span.End()
}

func TestStartSpan_WithoutClient(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "rag.query", Fields{UserID: "u-1", Role: "worker", Operation: "query"})
	require.NotNil(t, ctx)
	span.Record("chunks", 2)
	span.Fail(errors.New("vector store down"))
	span.End()

	CaptureAuditViolation(ctx, "worker", 1)
}
