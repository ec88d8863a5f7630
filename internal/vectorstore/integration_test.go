//go:build integration

package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/domain"
	"github.com/smartclaim/triage/internal/embedding/embeddingtest"
	"github.com/smartclaim/triage/internal/tenant"
	"github.com/smartclaim/triage/internal/testutil"
)

const integrationDim = 256

// exerciseBackend runs the same isolation and lifecycle checks against any index.
func exerciseBackend(t *testing.T, index Index) {
	ctx := context.Background()
	s := NewStore(index, embeddingtest.NewHashEmbedder(integrationDim), tenant.NewFilter(zap.NewNop()), Options{}, zap.NewNop())

	require.NoError(t, s.EnsureCollection(ctx))
	require.NoError(t, s.EnsureCollection(ctx), "bootstrap must be idempotent")

	_, err := s.Upsert(ctx, []domain.Chunk{
		chunk("a-1", "worker-a", "maintenance", "maintenance", "conveyor belt jammed"),
		chunk("a-2", "worker-a", "safety", "safety", "conveyor guard missing"),
		chunk("b-1", "worker-b", "maintenance", "maintenance", "conveyor motor overheating"),
		chunk("c-1", "worker-c", "", "", "conveyor noise"),
	})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), stats.PointsCount)

	results, err := s.Search(ctx, "conveyor", workerA, SearchOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a-1", "a-2"}, recordIDs(results))

	manager := domain.UserContext{UserID: "m", Role: domain.RoleDepartmentManager, DepartmentID: "maintenance"}
	results, err = s.Search(ctx, "all tickets", manager, SearchOptions{ScoreThreshold: Threshold(0)})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a-1", "b-1"}, recordIDs(results))

	orphan := domain.UserContext{UserID: "m", Role: domain.RoleDepartmentManager}
	results, err = s.Search(ctx, "conveyor", orphan, SearchOptions{ScoreThreshold: Threshold(0)})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.Search(ctx, "conveyor", admin, SearchOptions{Filter: tenant.Eq(domain.FieldCategory, "safety")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a-2"}, recordIDs(results))

	ok, err := s.DeleteByRecordID(ctx, "a-1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.DeleteByRecordID(ctx, "a-1")
	require.NoError(t, err)
	assert.True(t, ok)

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.PointsCount)

	require.NoError(t, s.Recreate(ctx))
	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.PointsCount)
}

func TestQdrantIndex_Integration(t *testing.T) {
	ctx := context.Background()
	qc := testutil.NewQdrantContainer(ctx, t)
	defer qc.Terminate(ctx)

	index, err := NewQdrantIndex(QdrantConfig{Host: qc.Host, Port: qc.Port, Collection: "tickets_test"}, zap.NewNop())
	require.NoError(t, err)
	defer index.Close()

	exerciseBackend(t, index)
}

func TestQdrantIndex_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	qc := testutil.NewQdrantContainer(ctx, t)
	defer qc.Terminate(ctx)

	index, err := NewQdrantIndex(QdrantConfig{Host: qc.Host, Port: qc.Port, Collection: "tickets_dim"}, zap.NewNop())
	require.NoError(t, err)
	defer index.Close()

	require.NoError(t, index.EnsureCollection(ctx, 8))
	assert.ErrorIs(t, index.EnsureCollection(ctx, 16), domain.ErrDimensionMismatch)
}

func TestPgvectorIndex_Integration(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc)
	defer pool.Close()

	exerciseBackend(t, NewPgvectorIndex(pool, "tickets_test"))
}

func TestPgvectorIndex_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc)
	defer pool.Close()

	index := NewPgvectorIndex(pool, "tickets_dim")
	require.NoError(t, index.EnsureCollection(ctx, 8))
	assert.ErrorIs(t, index.EnsureCollection(ctx, 16), domain.ErrDimensionMismatch)
}
