package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/chunking"
	"github.com/smartclaim/triage/internal/domain"
	"github.com/smartclaim/triage/internal/metrics"
	"github.com/smartclaim/triage/internal/telemetry"
)

const DefaultBatchSize = 50

// TicketSource reads tickets from the source-of-truth database.
type TicketSource interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListAll(ctx context.Context) ([]*domain.Ticket, error)
	ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error)
}

// ChunkStore is the write side of the vector store.
type ChunkStore interface {
	Upsert(ctx context.Context, chunks []domain.Chunk) (int, error)
	DeleteByRecordID(ctx context.Context, recordID string) (bool, error)
}

// SyncStats summarizes a full sync.
type SyncStats struct {
	TotalTickets    int     `json:"total_tickets"`
	TotalChunks     int     `json:"total_chunks"`
	Errors          int     `json:"errors"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// TicketSyncResult summarizes a single-ticket sync.
type TicketSyncResult struct {
	TicketID      string `json:"ticket_id"`
	ChunksCreated int    `json:"chunks_created"`
	Success       bool   `json:"success"`
	NotFound      bool   `json:"not_found,omitempty"`
}

// Pipeline moves tickets from the source database into the vector store.
type Pipeline struct {
	source    TicketSource
	store     ChunkStore
	chunker   *chunking.TicketChunker
	batchSize int
	logger    *zap.Logger
}

func NewPipeline(source TicketSource, store ChunkStore, chunker *chunking.TicketChunker, batchSize int, logger *zap.Logger) *Pipeline {
	if chunker == nil {
		chunker = chunking.NewTicketChunker(nil)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		source:    source,
		store:     store,
		chunker:   chunker,
		batchSize: batchSize,
		logger:    logger.Named("ingestion"),
	}
}

// FullSync re-indexes every ticket. Each ticket's existing chunks are
// deleted before its new ones are written, so repeated runs leave the
// point count unchanged. Batches run one after another; a failing ticket or
// batch is counted and skipped.
func (p *Pipeline) FullSync(ctx context.Context) (*SyncStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "ingestion.full_sync", telemetry.Fields{Operation: "full_sync"})
	defer span.End()

	start := time.Now()
	stats := &SyncStats{}
	p.logger.Info("starting full sync")

	tickets, err := p.source.ListAll(ctx)
	if err != nil {
		span.Fail(err)
		metrics.RecordSyncError("full")
		return nil, fmt.Errorf("%w: list tickets: %v", domain.ErrSourceUnavailable, err)
	}
	stats.TotalTickets = len(tickets)

	batches := (len(tickets) + p.batchSize - 1) / p.batchSize
	for i := 0; i < len(tickets); i += p.batchSize {
		if err := ctx.Err(); err != nil {
			stats.DurationSeconds = time.Since(start).Seconds()
			return stats, err
		}

		end := min(i+p.batchSize, len(tickets))
		chunks, failed := p.chunkBatch(ctx, tickets[i:end])
		stats.Errors += failed

		if len(chunks) > 0 {
			n, err := p.store.Upsert(ctx, chunks)
			if err != nil {
				p.logger.Error("batch upsert failed",
					zap.Int("batch", i/p.batchSize+1),
					zap.Int("chunks", len(chunks)),
					zap.Error(err),
				)
				metrics.RecordSyncError("full")
				stats.Errors++
			} else {
				stats.TotalChunks += n
				metrics.RecordSyncedChunks("full", n)
			}
		}

		p.logger.Info("processed batch", zap.Int("batch", i/p.batchSize+1), zap.Int("of", batches))
	}

	stats.DurationSeconds = time.Since(start).Seconds()
	p.logger.Info("full sync completed",
		zap.Int("tickets", stats.TotalTickets),
		zap.Int("chunks", stats.TotalChunks),
		zap.Int("errors", stats.Errors),
		zap.Float64("duration_seconds", stats.DurationSeconds),
	)
	return stats, nil
}

func (p *Pipeline) chunkBatch(ctx context.Context, tickets []*domain.Ticket) ([]domain.Chunk, int) {
	var (
		chunks []domain.Chunk
		failed int
	)
	for _, t := range tickets {
		if _, err := p.store.DeleteByRecordID(ctx, t.ID); err != nil {
			p.logger.Error("failed to delete existing chunks", zap.String("ticket_id", t.ID), zap.Error(err))
			metrics.RecordSyncError("full")
			failed++
			continue
		}
		comments, err := p.source.ListComments(ctx, t.ID)
		if err != nil {
			p.logger.Error("failed to fetch comments", zap.String("ticket_id", t.ID), zap.Error(err))
			metrics.RecordSyncError("full")
			failed++
			continue
		}
		chunks = append(chunks, p.chunker.Chunk(t, comments)...)
	}
	return chunks, failed
}

// SyncTicket re-indexes one ticket. Existing chunks are deleted before the
// fetch so a failed fetch leaves the ticket absent rather than stale.
func (p *Pipeline) SyncTicket(ctx context.Context, id string) (*TicketSyncResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ingestion.sync_ticket", telemetry.Fields{
		TicketID:  id,
		Operation: "sync_ticket",
	})
	defer span.End()

	result := &TicketSyncResult{TicketID: id}

	if _, err := p.store.DeleteByRecordID(ctx, id); err != nil {
		span.Fail(err)
		metrics.RecordSyncError("ticket")
		return result, fmt.Errorf("delete existing chunks: %w", err)
	}

	ticket, err := p.source.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrTicketNotFound) {
			p.logger.Warn("ticket not found, nothing to sync", zap.String("ticket_id", id))
			result.NotFound = true
			return result, nil
		}
		span.Fail(err)
		metrics.RecordSyncError("ticket")
		return result, fmt.Errorf("%w: fetch ticket %s: %v", domain.ErrSourceUnavailable, id, err)
	}

	comments, err := p.source.ListComments(ctx, id)
	if err != nil {
		span.Fail(err)
		metrics.RecordSyncError("ticket")
		return result, fmt.Errorf("%w: fetch comments for %s: %v", domain.ErrSourceUnavailable, id, err)
	}

	chunks := p.chunker.Chunk(ticket, comments)
	if len(chunks) > 0 {
		n, err := p.store.Upsert(ctx, chunks)
		if err != nil {
			span.Fail(err)
			metrics.RecordSyncError("ticket")
			return result, fmt.Errorf("upsert chunks: %w", err)
		}
		result.ChunksCreated = n
		metrics.RecordSyncedChunks("ticket", n)
	}

	result.Success = true
	p.logger.Info("synced ticket", zap.String("ticket_id", id), zap.Int("chunks", result.ChunksCreated))
	return result, nil
}

// DeleteRecord removes a ticket's chunks. Unknown ids succeed.
func (p *Pipeline) DeleteRecord(ctx context.Context, id string) (bool, error) {
	p.logger.Info("deleting ticket chunks", zap.String("ticket_id", id))
	ok, err := p.store.DeleteByRecordID(ctx, id)
	if err != nil {
		metrics.RecordSyncError("delete")
		return false, err
	}
	return ok, nil
}

// ProcessJobs runs a full sync; it lets the pipeline drive the periodic
// reconciliation worker.
func (p *Pipeline) ProcessJobs(ctx context.Context) error {
	stats, err := p.FullSync(ctx)
	if err != nil {
		return err
	}
	if stats.Errors > 0 {
		return fmt.Errorf("full sync finished with %d errors", stats.Errors)
	}
	return nil
}
