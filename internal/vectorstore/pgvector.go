package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/smartclaim/triage/internal/domain"
	"github.com/smartclaim/triage/internal/tenant"
)

// predicateColumns whitelists the payload fields a predicate may reference.
var predicateColumns = map[string]string{
	domain.FieldRecordID:      "record_id",
	domain.FieldRecordNumber:  "record_number",
	domain.FieldCreatedBy:     "created_by",
	domain.FieldDepartmentID:  "department_id",
	domain.FieldCategory:      "category",
	domain.FieldPriority:      "priority",
	domain.FieldStatus:        "status",
	domain.FieldChunkType:     "chunk_type",
	domain.FieldCommentID:     "comment_id",
	domain.FieldCommentUserID: "comment_user_id",
}

const chunkColumns = `id::text AS id, record_id, record_number, created_by, department_id, category, priority, status,
	chunk_type, chunk_index, total_chunks, comment_id, comment_user_id, created_at, content`

// PgvectorIndex stores points in the rag_chunks table. The schema is created
// by database.Migrate.
type PgvectorIndex struct {
	pool       *pgxpool.Pool
	collection string
}

func NewPgvectorIndex(pool *pgxpool.Pool, collection string) *PgvectorIndex {
	return &PgvectorIndex{pool: pool, collection: collection}
}

func (p *PgvectorIndex) EnsureCollection(ctx context.Context, dimension int) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO rag_collections (name, dimension) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		p.collection, dimension)
	if err != nil {
		return err
	}

	existing, err := p.dimension(ctx)
	if err != nil {
		return err
	}
	if existing != dimension {
		return fmt.Errorf("%w: collection has %d, embedder produces %d", domain.ErrDimensionMismatch, existing, dimension)
	}
	return nil
}

func (p *PgvectorIndex) dimension(ctx context.Context) (int, error) {
	var dim int
	err := p.pool.QueryRow(ctx, `SELECT dimension FROM rag_collections WHERE name = $1`, p.collection).Scan(&dim)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return dim, err
}

func (p *PgvectorIndex) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	dim, err := p.dimension(ctx)
	if err != nil {
		return err
	}
	if dim == 0 {
		return fmt.Errorf("collection %s does not exist", p.collection)
	}

	batch := &pgx.Batch{}
	for _, pt := range points {
		if len(pt.Vector) != dim {
			return fmt.Errorf("%w: point %s has %d", domain.ErrDimensionMismatch, pt.ID, len(pt.Vector))
		}
		m := pt.Chunk.Metadata
		batch.Queue(
			`INSERT INTO rag_chunks
				(id, collection, record_id, record_number, created_by, department_id, category, priority, status,
				 chunk_type, chunk_index, total_chunks, comment_id, comment_user_id, created_at, content, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			pt.ID, p.collection, m.RecordID, nullableString(m.RecordNumber), m.CreatedBy,
			nullableString(m.DepartmentID), nullableString(m.Category), nullableString(m.Priority),
			nullableString(m.Status), string(m.ChunkType), m.ChunkIndex, m.TotalChunks,
			nullableString(m.CommentID), nullableString(m.CommentUserID), nullableString(m.CreatedAt),
			pt.Chunk.Content, pgvector.NewVector(pt.Vector),
		)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *PgvectorIndex) DeleteByRecordID(ctx context.Context, recordID string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM rag_chunks WHERE collection = $1 AND record_id = $2`, p.collection, recordID)
	return err
}

func (p *PgvectorIndex) Query(ctx context.Context, q Query) ([]Hit, error) {
	where, args, err := sqlPredicate(q.Filter, 3)
	if err != nil {
		return nil, err
	}
	args = append([]any{pgvector.NewVector(q.Vector), p.collection}, args...)

	sql := `SELECT * FROM (
		SELECT ` + chunkColumns + `,
		       COALESCE(NULLIF(1 - (embedding <=> $1), 'NaN'::float8), 0)::float4 AS score
		FROM rag_chunks
		WHERE collection = $2` + where + `
	) ranked`
	if q.Threshold != nil {
		args = append(args, *q.Threshold)
		sql += fmt.Sprintf(" WHERE score >= $%d", len(args))
	}
	sql += " ORDER BY score DESC, id"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h                                                     Hit
			m                                                     domain.ChunkMetadata
			recordNumber, deptID, category, priority, statusValue *string
			commentID, commentUserID, createdAt                   *string
			chunkType                                             string
		)
		if err := rows.Scan(
			&h.ID, &m.RecordID, &recordNumber, &m.CreatedBy, &deptID, &category, &priority, &statusValue,
			&chunkType, &m.ChunkIndex, &m.TotalChunks, &commentID, &commentUserID, &createdAt,
			&h.Chunk.Content, &h.Score,
		); err != nil {
			return nil, err
		}
		m.RecordNumber = deref(recordNumber)
		m.DepartmentID = deref(deptID)
		m.Category = deref(category)
		m.Priority = deref(priority)
		m.Status = deref(statusValue)
		m.ChunkType = domain.ChunkType(chunkType)
		m.CommentID = deref(commentID)
		m.CommentUserID = deref(commentUserID)
		m.CreatedAt = deref(createdAt)
		h.Chunk.Metadata = m
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (p *PgvectorIndex) Stats(ctx context.Context) (Stats, error) {
	dim, err := p.dimension(ctx)
	if err != nil {
		return Stats{}, err
	}
	if dim == 0 {
		return Stats{Collection: p.collection, Status: "missing"}, nil
	}

	var count int64
	if err := p.pool.QueryRow(ctx,
		`SELECT count(*) FROM rag_chunks WHERE collection = $1`, p.collection).Scan(&count); err != nil {
		return Stats{}, err
	}
	return Stats{Collection: p.collection, PointsCount: uint64(count), Status: "green", Dimension: dim}, nil
}

// Drop removes the collection row; its chunks cascade.
func (p *PgvectorIndex) Drop(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM rag_collections WHERE name = $1`, p.collection)
	return err
}

// Close is a no-op; the pool is owned by the caller.
func (p *PgvectorIndex) Close() error {
	return nil
}

// sqlPredicate renders a predicate as " AND col = $n" clauses with bound
// parameters numbered from first.
func sqlPredicate(pred *tenant.Predicate, first int) (string, []any, error) {
	if pred.IsUnrestricted() {
		return "", nil, nil
	}
	var (
		b    strings.Builder
		args []any
	)
	for _, c := range pred.Clauses() {
		col, ok := predicateColumns[c.Field]
		if !ok {
			return "", nil, fmt.Errorf("field %q cannot be filtered", c.Field)
		}
		args = append(args, c.Value)
		fmt.Fprintf(&b, " AND %s = $%d", col, first+len(args)-1)
	}
	return b.String(), args, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
