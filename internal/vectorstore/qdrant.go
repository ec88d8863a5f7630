package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/smartclaim/triage/internal/domain"
	"github.com/smartclaim/triage/internal/tenant"
)

type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	PoolSize   uint
	Collection string
}

// QdrantIndex stores points in a Qdrant collection over gRPC.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	logger     *zap.Logger
}

func NewQdrantIndex(cfg QdrantConfig, logger *zap.Logger) (*QdrantIndex, error) {
	if cfg.Collection == "" {
		return nil, errors.New("empty collection name")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		APIKey:   cfg.APIKey,
		UseTLS:   cfg.UseTLS,
		PoolSize: cfg.PoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("could not instantiate qdrant client: %w", err)
	}
	return &QdrantIndex{client: client, collection: cfg.Collection, logger: logger.Named("qdrant")}, nil
}

func (q *QdrantIndex) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return err
	}
	if !exists {
		err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return fmt.Errorf("create collection %s: %w", q.collection, err)
		}
		q.logger.Info("created collection", zap.String("collection", q.collection), zap.Int("dimension", dimension))
	} else {
		info, err := q.client.GetCollectionInfo(ctx, q.collection)
		if err != nil {
			return err
		}
		if size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize(); size != 0 && size != uint64(dimension) {
			return fmt.Errorf("%w: collection has %d, embedder produces %d", domain.ErrDimensionMismatch, size, dimension)
		}
	}

	// Creating an index that already exists is accepted by Qdrant.
	for _, field := range domain.IndexedFields {
		_, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("create payload index %s: %w", field, err)
		}
	}
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload, err := qdrant.TryValueMap(p.Chunk.Payload())
		if err != nil {
			return fmt.Errorf("encode payload for %s: %w", p.ID, err)
		}
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		}
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func (q *QdrantIndex) DeleteByRecordID(ctx context.Context, recordID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(domain.FieldRecordID, recordID)},
		}),
	})
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("qdrant delete failed: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Query(ctx context.Context, query Query) ([]Hit, error) {
	req := &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query.Vector...),
		Filter:         qdrantFilter(query.Filter),
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: query.Threshold,
	}
	if query.Limit > 0 {
		req.Limit = qdrant.PtrOf(uint64(query.Limit))
	}

	result, err := q.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant query failed: %w", err)
	}

	hits := make([]Hit, 0, len(result))
	for _, point := range result {
		hits = append(hits, Hit{
			ID:    point.GetId().GetUuid(),
			Score: point.GetScore(),
			Chunk: domain.ChunkFromPayload(fromQdrantPayload(point.GetPayload())),
		})
	}
	return hits, nil
}

func (q *QdrantIndex) Stats(ctx context.Context) (Stats, error) {
	info, err := q.client.GetCollectionInfo(ctx, q.collection)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return Stats{Collection: q.collection, Status: "missing"}, nil
		}
		return Stats{}, err
	}
	return Stats{
		Collection:  q.collection,
		PointsCount: info.GetPointsCount(),
		Status:      info.GetStatus().String(),
		Dimension:   int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()),
	}, nil
}

func (q *QdrantIndex) Drop(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return q.client.DeleteCollection(ctx, q.collection)
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

// qdrantFilter translates a predicate into a Must conjunction. A nil
// predicate yields no filter.
func qdrantFilter(p *tenant.Predicate) *qdrant.Filter {
	if p.IsUnrestricted() {
		return nil
	}
	clauses := p.Clauses()
	must := make([]*qdrant.Condition, 0, len(clauses))
	for _, c := range clauses {
		must = append(must, qdrant.NewMatch(c.Field, c.Value))
	}
	return &qdrant.Filter{Must: must}
}

func fromQdrantPayload(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			out[k] = kind.BoolValue
		}
	}
	return out
}
