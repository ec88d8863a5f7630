package ingestion

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/domain"
)

const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// WebhookEvent is a database change notification.
type WebhookEvent struct {
	Type      string         `json:"type"`
	Table     string         `json:"table"`
	Schema    string         `json:"schema,omitempty"`
	Record    map[string]any `json:"record,omitempty"`
	OldRecord map[string]any `json:"old_record,omitempty"`
}

// WebhookAck is returned to the caller immediately; the work runs later.
type WebhookAck struct {
	Status   string `json:"status"`
	Action   string `json:"action,omitempty"`
	TicketID string `json:"ticket_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Syncer is the part of Pipeline the webhook handlers schedule.
type Syncer interface {
	SyncTicket(ctx context.Context, id string) (*TicketSyncResult, error)
	DeleteRecord(ctx context.Context, id string) (bool, error)
	FullSync(ctx context.Context) (*SyncStats, error)
}

// Scheduler submits background tasks.
type Scheduler interface {
	Submit(name string, task Task) error
}

// Triggers turns API calls and change notifications into background work.
type Triggers struct {
	syncer    Syncer
	scheduler Scheduler
	logger    *zap.Logger
}

func NewTriggers(syncer Syncer, scheduler Scheduler, logger *zap.Logger) *Triggers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Triggers{syncer: syncer, scheduler: scheduler, logger: logger.Named("triggers")}
}

// ScheduleFullSync queues a full sync and returns without waiting for it.
func (t *Triggers) ScheduleFullSync() error {
	return t.scheduler.Submit("full_sync", func(ctx context.Context) error {
		_, err := t.syncer.FullSync(ctx)
		return err
	})
}

// TicketChanged handles a change on the tickets table.
func (t *Triggers) TicketChanged(evt WebhookEvent) (WebhookAck, error) {
	t.logger.Info("ticket webhook received", zap.String("type", evt.Type), zap.String("table", evt.Table))

	switch strings.ToUpper(evt.Type) {
	case EventDelete:
		id := stringField(evt.OldRecord, "id")
		if id == "" {
			return WebhookAck{Status: "ignored", Reason: "no ticket id in old_record"}, nil
		}
		if err := t.scheduleDelete(id); err != nil {
			return WebhookAck{}, err
		}
		return WebhookAck{Status: "accepted", Action: "delete", TicketID: id}, nil

	case EventInsert, EventUpdate:
		id := stringField(evt.Record, "id")
		if id == "" {
			return WebhookAck{Status: "ignored", Reason: "no ticket id in record"}, nil
		}
		if err := t.scheduleSync(id); err != nil {
			return WebhookAck{}, err
		}
		return WebhookAck{Status: "accepted", Action: "sync", TicketID: id}, nil

	default:
		return WebhookAck{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedEvent, evt.Type)
	}
}

// CommentChanged resyncs the parent ticket of a changed comment.
func (t *Triggers) CommentChanged(evt WebhookEvent) (WebhookAck, error) {
	t.logger.Info("comment webhook received", zap.String("type", evt.Type), zap.String("table", evt.Table))

	var id string
	switch strings.ToUpper(evt.Type) {
	case EventDelete:
		id = stringField(evt.OldRecord, "ticket_id")
	case EventInsert, EventUpdate:
		id = stringField(evt.Record, "ticket_id")
	default:
		return WebhookAck{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedEvent, evt.Type)
	}
	if id == "" {
		return WebhookAck{Status: "ignored", Reason: "no ticket_id in payload"}, nil
	}
	if err := t.scheduleSync(id); err != nil {
		return WebhookAck{}, err
	}
	return WebhookAck{Status: "accepted", Action: "resync", TicketID: id}, nil
}

func (t *Triggers) scheduleSync(id string) error {
	return t.scheduler.Submit("sync_ticket:"+id, func(ctx context.Context) error {
		_, err := t.syncer.SyncTicket(ctx, id)
		return err
	})
}

func (t *Triggers) scheduleDelete(id string) error {
	return t.scheduler.Submit("delete_ticket:"+id, func(ctx context.Context) error {
		_, err := t.syncer.DeleteRecord(ctx, id)
		return err
	})
}

func stringField(record map[string]any, key string) string {
	if record == nil {
		return ""
	}
	switch v := record[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
