package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/domain"
	"github.com/smartclaim/triage/internal/embedding"
	"github.com/smartclaim/triage/internal/metrics"
	"github.com/smartclaim/triage/internal/telemetry"
	"github.com/smartclaim/triage/internal/tenant"
)

const (
	DefaultScoreThreshold float32 = 0.2
	DefaultTopK                   = 10
	MaxTopK                       = 100
)

type Options struct {
	// DefaultThreshold applies when a search does not supply one.
	DefaultThreshold float32
	Timeout          time.Duration
	MaxRetries       uint64
}

// SearchOptions narrows a search. ScoreThreshold nil means "use the default";
// a pointer to 0 disables the threshold. Filter is intersected with the
// caller's tenant predicate and can only narrow it.
type SearchOptions struct {
	TopK           int
	ScoreThreshold *float32
	Filter         *tenant.Predicate
}

// Threshold is a convenience for building SearchOptions.ScoreThreshold.
func Threshold(v float32) *float32 {
	return &v
}

// Store is the tenant-aware vector store adapter.
type Store struct {
	index    Index
	embedder embedding.Embedder
	filter   *tenant.Filter
	opts     Options
	logger   *zap.Logger
}

func NewStore(index Index, embedder embedding.Embedder, filter *tenant.Filter, opts Options, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if filter == nil {
		filter = tenant.NewFilter(logger)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 2
	}
	return &Store{
		index:    index,
		embedder: embedder,
		filter:   filter,
		opts:     opts,
		logger:   logger.Named("vectorstore"),
	}
}

// EnsureCollection bootstraps the collection and its payload indexes.
func (s *Store) EnsureCollection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	if err := s.index.EnsureCollection(ctx, s.embedder.Dimension()); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	return nil
}

// Upsert embeds and writes chunks, one new point per chunk.
func (s *Store) Upsert(ctx context.Context, chunks []domain.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	points := make([]Point, len(chunks))
	for i, c := range chunks {
		points[i] = Point{ID: uuid.NewString(), Vector: vectors[i], Chunk: c}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	err = s.index.Upsert(callCtx, points)
	metrics.ObserveDependency("vectorstore", start)
	if err != nil {
		return 0, fmt.Errorf("%w: upsert: %v", domain.ErrVectorStoreUnavailable, err)
	}

	return len(points), nil
}

// DeleteByRecordID removes all chunks of a record. Unknown ids succeed.
func (s *Store) DeleteByRecordID(ctx context.Context, recordID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	if err := s.index.DeleteByRecordID(ctx, recordID); err != nil {
		return false, fmt.Errorf("%w: delete %s: %v", domain.ErrVectorStoreUnavailable, recordID, err)
	}
	return true, nil
}

// Search returns at most TopK chunks uc may see, best first.
func (s *Store) Search(ctx context.Context, query string, uc domain.UserContext, opts SearchOptions) ([]domain.ScoredChunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "vectorstore.search", telemetry.Fields{
		UserID:    uc.UserID,
		Role:      string(uc.Role),
		Operation: "search",
	})
	defer span.End()

	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	var threshold *float32
	switch {
	case opts.ScoreThreshold == nil:
		threshold = Threshold(s.opts.DefaultThreshold)
	case *opts.ScoreThreshold == 0:
		threshold = nil
	default:
		threshold = Threshold(*opts.ScoreThreshold)
	}

	predicate := tenant.And(s.filter.Build(ctx, uc), opts.Filter)

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		span.Fail(err)
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.queryWithRetry(ctx, Query{
		Vector:    vector,
		Filter:    predicate,
		Limit:     topK,
		Threshold: threshold,
	})
	if err != nil {
		span.Fail(err)
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}

	results := make([]domain.ScoredChunk, len(hits))
	for i, h := range hits {
		results[i] = domain.ScoredChunk{
			ID:       h.ID,
			Score:    h.Score,
			Content:  h.Chunk.Content,
			Metadata: h.Chunk.Metadata,
		}
	}

	return s.filter.Audit(ctx, uc, results), nil
}

func (s *Store) queryWithRetry(ctx context.Context, q Query) ([]Hit, error) {
	var hits []Hit
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()

		start := time.Now()
		result, err := s.index.Query(callCtx, q)
		metrics.ObserveDependency("vectorstore", start)
		if err != nil {
			if errors.Is(err, domain.ErrDimensionMismatch) {
				return backoff.Permanent(err)
			}
			return err
		}
		hits = result
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxElapsedTime = 0

	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(policy, s.opts.MaxRetries), ctx),
		func(err error, wait time.Duration) {
			s.logger.Warn("vector search failed, retrying", zap.Duration("wait", wait), zap.Error(err))
		})
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", domain.ErrVectorStoreUnavailable, err)
	}
	return hits, nil
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	stats, err := s.index.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: stats: %v", domain.ErrVectorStoreUnavailable, err)
	}
	return stats, nil
}

// Recreate drops the collection and bootstraps it again, discarding every point.
func (s *Store) Recreate(ctx context.Context) error {
	s.logger.Warn("recreating vector collection")
	if err := s.index.Drop(ctx); err != nil {
		return fmt.Errorf("%w: drop: %v", domain.ErrVectorStoreUnavailable, err)
	}
	return s.EnsureCollection(ctx)
}

// EmbeddingModel names the model used for stored vectors.
func (s *Store) EmbeddingModel() string {
	return s.embedder.Model()
}

func (s *Store) Close() error {
	return s.index.Close()
}
