package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/api"
	"github.com/smartclaim/triage/internal/domain"
	"github.com/smartclaim/triage/internal/ingestion"
)

type TicketSyncer interface {
	SyncTicket(ctx context.Context, id string) (*ingestion.TicketSyncResult, error)
	DeleteRecord(ctx context.Context, id string) (bool, error)
}

type SyncTriggers interface {
	ScheduleFullSync() error
	TicketChanged(evt ingestion.WebhookEvent) (ingestion.WebhookAck, error)
	CommentChanged(evt ingestion.WebhookEvent) (ingestion.WebhookAck, error)
}

type IngestHandler struct {
	syncer   TicketSyncer
	triggers SyncTriggers
	logger   *zap.Logger
}

func NewIngestHandler(syncer TicketSyncer, triggers SyncTriggers, logger *zap.Logger) *IngestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestHandler{syncer: syncer, triggers: triggers, logger: logger.Named("ingest_handler")}
}

type SyncTicketRequest struct {
	TicketID string `json:"ticket_id"`
}

func (h *IngestHandler) FullSync(w http.ResponseWriter, r *http.Request) {
	if err := h.triggers.ScheduleFullSync(); err != nil {
		h.logger.Error("failed to schedule full sync", zap.Error(err))
		api.HandleError(w, domain.ErrSyncQueueFull.Wrap(err))
		return
	}
	api.Success(w, http.StatusAccepted, AdminResult{Success: true, Message: "full sync started in background"})
}

func (h *IngestHandler) SyncTicket(w http.ResponseWriter, r *http.Request) {
	var req SyncTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := strings.TrimSpace(req.TicketID)
	if id == "" {
		api.Error(w, http.StatusBadRequest, "ticket_id is required")
		return
	}

	result, err := h.syncer.SyncTicket(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, result)
}

func (h *IngestHandler) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	deleted, err := h.syncer.DeleteRecord(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, AdminResult{
		Success: true,
		Message: "ticket chunks deleted",
		Details: map[string]any{"ticket_id": id, "deleted": deleted},
	})
}

func (h *IngestHandler) TicketWebhook(w http.ResponseWriter, r *http.Request) {
	h.webhook(w, r, h.triggers.TicketChanged)
}

func (h *IngestHandler) CommentWebhook(w http.ResponseWriter, r *http.Request) {
	h.webhook(w, r, h.triggers.CommentChanged)
}

func (h *IngestHandler) webhook(w http.ResponseWriter, r *http.Request, handle func(ingestion.WebhookEvent) (ingestion.WebhookAck, error)) {
	var evt ingestion.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ack, err := handle(evt)
	if err != nil {
		if api.DomainErrorToHTTP(err) == http.StatusBadRequest {
			api.HandleError(w, err)
			return
		}
		h.logger.Error("failed to schedule webhook work", zap.Error(err), zap.String("type", evt.Type))
		api.HandleError(w, domain.ErrSyncQueueFull.Wrap(err))
		return
	}

	status := http.StatusAccepted
	if ack.Status == "ignored" {
		status = http.StatusOK
	}
	api.Success(w, status, ack)
}
