package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/smartclaim/triage/internal/domain"
)

// MemoryIndex is an exact-scan in-process index.
type MemoryIndex struct {
	mu         sync.RWMutex
	collection string
	dimension  int
	created    bool
	points     map[string]Point
}

func NewMemoryIndex(collection string) *MemoryIndex {
	return &MemoryIndex{collection: collection, points: make(map[string]Point)}
}

func (m *MemoryIndex) EnsureCollection(_ context.Context, dimension int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.created {
		if m.dimension != dimension {
			return fmt.Errorf("%w: collection has %d, requested %d", domain.ErrDimensionMismatch, m.dimension, dimension)
		}
		return nil
	}
	m.created = true
	m.dimension = dimension
	return nil
}

func (m *MemoryIndex) Upsert(_ context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.created {
		return fmt.Errorf("collection %s does not exist", m.collection)
	}
	for _, p := range points {
		if len(p.Vector) != m.dimension {
			return fmt.Errorf("%w: point %s has %d", domain.ErrDimensionMismatch, p.ID, len(p.Vector))
		}
	}
	for _, p := range points {
		m.points[p.ID] = p
	}
	return nil
}

func (m *MemoryIndex) DeleteByRecordID(_ context.Context, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.points {
		if p.Chunk.Metadata.RecordID == recordID {
			delete(m.points, id)
		}
	}
	return nil
}

func (m *MemoryIndex) Query(_ context.Context, q Query) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Hit
	for _, p := range m.points {
		if !q.Filter.Matches(p.Chunk.Metadata) {
			continue
		}
		score := cosine(q.Vector, p.Vector)
		if q.Threshold != nil && score < *q.Threshold {
			continue
		}
		hits = append(hits, Hit{ID: p.ID, Score: score, Chunk: p.Chunk})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

func (m *MemoryIndex) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := "green"
	if !m.created {
		status = "missing"
	}
	return Stats{
		Collection:  m.collection,
		PointsCount: uint64(len(m.points)),
		Status:      status,
		Dimension:   m.dimension,
	}, nil
}

func (m *MemoryIndex) Drop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = make(map[string]Point)
	m.created = false
	m.dimension = 0
	return nil
}

func (m *MemoryIndex) Close() error {
	return nil
}

// cosine returns 0 when either vector has zero norm.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
