package testutil

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartclaim/triage/internal/domain"
)

// SourceSchema mirrors the ticket database tables the ingestion pipeline reads.
const SourceSchema = `
CREATE TABLE IF NOT EXISTS tickets (
    id                     UUID PRIMARY KEY,
    ticket_number          TEXT,
    title                  TEXT,
    description            TEXT,
    category               TEXT,
    priority               TEXT,
    status                 TEXT,
    created_by             UUID,
    assigned_to_department UUID,
    ai_summary             TEXT,
    resolution_report      TEXT,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at             TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS ticket_comments (
    id         UUID PRIMARY KEY,
    ticket_id  UUID NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
    user_id    UUID,
    comment    TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// InsertTicket writes a ticket row into the source tables.
func InsertTicket(ctx context.Context, pool *pgxpool.Pool, ticket *domain.Ticket) error {
	_, err := pool.Exec(ctx,
		`INSERT INTO tickets (id, ticket_number, title, description, category, priority, status, created_by,
			assigned_to_department, ai_summary, resolution_report, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, '')::uuid, $10, $11, $12, $13)`,
		ticket.ID, ticket.TicketNumber, ticket.Title, ticket.Description, ticket.Category, ticket.Priority,
		ticket.Status, ticket.CreatedBy, ticket.AssignedToDepartment, ticket.AISummary, ticket.ResolutionReport,
		ticket.CreatedAt, ticket.UpdatedAt,
	)
	return err
}

// InsertComment writes a ticket comment row.
func InsertComment(ctx context.Context, pool *pgxpool.Pool, comment domain.Comment) error {
	_, err := pool.Exec(ctx,
		`INSERT INTO ticket_comments (id, ticket_id, user_id, comment, created_at) VALUES ($1, $2, $3, $4, $5)`,
		comment.ID, comment.TicketID, comment.UserID, comment.Comment, comment.CreatedAt,
	)
	return err
}

// TruncateAll empties the source and index tables between tests.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range []string{"ticket_comments", "tickets", "rag_chunks", "rag_collections"} {
		if _, err := pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}
