package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartclaim/triage/internal/domain"
)

const ticketColumns = `id::text, COALESCE(ticket_number, ''), COALESCE(title, ''), COALESCE(description, ''),
	COALESCE(category, ''), COALESCE(priority, ''), COALESCE(status, ''), COALESCE(created_by::text, ''),
	COALESCE(assigned_to_department::text, ''), COALESCE(ai_summary, ''), COALESCE(resolution_report, ''),
	created_at, COALESCE(updated_at, created_at)`

// TicketRepository reads tickets and comments from the source-of-truth
// database. It never writes.
type TicketRepository struct {
	pool *pgxpool.Pool
}

func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

func (r *TicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	t, err := scanTicket(r.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id::text = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *TicketRepository) ListAll(ctx context.Context) ([]*domain.Ticket, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []*domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (r *TicketRepository) ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, ticket_id::text, COALESCE(user_id::text, ''), COALESCE(comment, ''), created_at
		 FROM ticket_comments WHERE ticket_id::text = $1 ORDER BY created_at, id`,
		ticketID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.TicketID, &c.UserID, &c.Comment, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (r *TicketRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(
		&t.ID, &t.TicketNumber, &t.Title, &t.Description,
		&t.Category, &t.Priority, &t.Status, &t.CreatedBy,
		&t.AssignedToDepartment, &t.AISummary, &t.ResolutionReport,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
