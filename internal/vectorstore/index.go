// Package vectorstore owns the indexed chunk collection and applies tenant
// predicates to every similarity search.
package vectorstore

import (
	"context"

	"github.com/smartclaim/triage/internal/domain"
	"github.com/smartclaim/triage/internal/tenant"
)

// Point is one stored vector with its chunk payload.
type Point struct {
	ID     string
	Vector []float32
	Chunk  domain.Chunk
}

// Hit is a search result as returned by a backend.
type Hit struct {
	ID    string
	Score float32
	Chunk domain.Chunk
}

// Query is a filtered similarity search. A nil Filter is unrestricted; a nil
// Threshold applies no score cut-off.
type Query struct {
	Vector    []float32
	Filter    *tenant.Predicate
	Limit     int
	Threshold *float32
}

type Stats struct {
	Collection  string `json:"collection"`
	PointsCount uint64 `json:"points_count"`
	Status      string `json:"status"`
	Dimension   int    `json:"dimension"`
}

// Index is a vector database backend. Scores are cosine similarity, higher is
// closer. Implementations must evaluate Query.Filter before scoring.
type Index interface {
	// EnsureCollection creates the collection and its payload indexes when
	// missing. Calling it on an existing collection is a no-op.
	EnsureCollection(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, points []Point) error
	// DeleteByRecordID removes every point of the record. Deleting an
	// unknown record succeeds.
	DeleteByRecordID(ctx context.Context, recordID string) error
	Query(ctx context.Context, q Query) ([]Hit, error)
	Stats(ctx context.Context) (Stats, error)
	Drop(ctx context.Context) error
	Close() error
}
