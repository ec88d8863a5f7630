package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/domain"
)

type recordingSyncer struct {
	mu      sync.Mutex
	synced  []string
	deleted []string
	full    int
}

func (r *recordingSyncer) SyncTicket(_ context.Context, id string) (*TicketSyncResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synced = append(r.synced, id)
	return &TicketSyncResult{TicketID: id, Success: true}, nil
}

func (r *recordingSyncer) DeleteRecord(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
	return true, nil
}

func (r *recordingSyncer) FullSync(_ context.Context) (*SyncStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.full++
	return &SyncStats{}, nil
}

func newTriggers(t *testing.T) (*Triggers, *recordingSyncer, *Dispatcher) {
	t.Helper()
	d, err := NewDispatcher(2, time.Second, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { d.Release(time.Second) })
	syncer := &recordingSyncer{}
	return NewTriggers(syncer, d, zap.NewNop()), syncer, d
}

func TestTriggers_TicketChanged(t *testing.T) {
	tr, syncer, d := newTriggers(t)

	ack, err := tr.TicketChanged(WebhookEvent{Type: "INSERT", Table: "tickets", Record: map[string]any{"id": "t-1"}})
	require.NoError(t, err)
	assert.Equal(t, WebhookAck{Status: "accepted", Action: "sync", TicketID: "t-1"}, ack)

	ack, err = tr.TicketChanged(WebhookEvent{Type: "update", Table: "tickets", Record: map[string]any{"id": "t-2"}})
	require.NoError(t, err)
	assert.Equal(t, "sync", ack.Action)

	ack, err = tr.TicketChanged(WebhookEvent{Type: "DELETE", Table: "tickets", OldRecord: map[string]any{"id": "t-3"}})
	require.NoError(t, err)
	assert.Equal(t, WebhookAck{Status: "accepted", Action: "delete", TicketID: "t-3"}, ack)

	d.Wait()
	assert.ElementsMatch(t, []string{"t-1", "t-2"}, syncer.synced)
	assert.Equal(t, []string{"t-3"}, syncer.deleted)
}

func TestTriggers_TicketChangedWithoutID(t *testing.T) {
	tr, syncer, d := newTriggers(t)

	ack, err := tr.TicketChanged(WebhookEvent{Type: "DELETE", Table: "tickets"})
	require.NoError(t, err)
	assert.Equal(t, "ignored", ack.Status)

	d.Wait()
	assert.Empty(t, syncer.deleted)
}

func TestTriggers_UnsupportedEvent(t *testing.T) {
	tr, _, _ := newTriggers(t)

	_, err := tr.TicketChanged(WebhookEvent{Type: "TRUNCATE", Table: "tickets"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedEvent)

	_, err = tr.CommentChanged(WebhookEvent{Type: "TRUNCATE", Table: "ticket_comments"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedEvent)
}

func TestTriggers_CommentChangedResyncsParent(t *testing.T) {
	tr, syncer, d := newTriggers(t)

	ack, err := tr.CommentChanged(WebhookEvent{Type: "INSERT", Table: "ticket_comments",
		Record: map[string]any{"id": "c-1", "ticket_id": "t-1"}})
	require.NoError(t, err)
	assert.Equal(t, WebhookAck{Status: "accepted", Action: "resync", TicketID: "t-1"}, ack)

	_, err = tr.CommentChanged(WebhookEvent{Type: "DELETE", Table: "ticket_comments",
		OldRecord: map[string]any{"id": "c-2", "ticket_id": "t-2"}})
	require.NoError(t, err)

	d.Wait()
	assert.ElementsMatch(t, []string{"t-1", "t-2"}, syncer.synced)
	assert.Empty(t, syncer.deleted)
}

func TestTriggers_ScheduleFullSync(t *testing.T) {
	tr, syncer, d := newTriggers(t)

	require.NoError(t, tr.ScheduleFullSync())
	d.Wait()

	assert.Equal(t, 1, syncer.full)
}

func TestDispatcher_TaskContextOutlivesCaller(t *testing.T) {
	d, err := NewDispatcher(1, time.Second, zap.NewNop())
	require.NoError(t, err)
	defer d.Release(time.Second)

	var ctxErr error
	require.NoError(t, d.Submit("check", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		if !hasDeadline {
			return errors.New("task context has no deadline")
		}
		ctxErr = ctx.Err()
		return nil
	}))
	d.Wait()

	assert.NoError(t, ctxErr)
}
