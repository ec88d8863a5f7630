package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/smartclaim/triage/internal/domain"
	"github.com/smartclaim/triage/internal/ingestion"
)

type MockTicketSyncer struct {
	mock.Mock
}

func (m *MockTicketSyncer) SyncTicket(ctx context.Context, id string) (*ingestion.TicketSyncResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingestion.TicketSyncResult), args.Error(1)
}

func (m *MockTicketSyncer) DeleteRecord(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type MockSyncTriggers struct {
	mock.Mock
}

func (m *MockSyncTriggers) ScheduleFullSync() error {
	return m.Called().Error(0)
}

func (m *MockSyncTriggers) TicketChanged(evt ingestion.WebhookEvent) (ingestion.WebhookAck, error) {
	args := m.Called(evt)
	return args.Get(0).(ingestion.WebhookAck), args.Error(1)
}

func (m *MockSyncTriggers) CommentChanged(evt ingestion.WebhookEvent) (ingestion.WebhookAck, error) {
	args := m.Called(evt)
	return args.Get(0).(ingestion.WebhookAck), args.Error(1)
}

func TestIngestHandler_FullSync(t *testing.T) {
	triggers := new(MockSyncTriggers)
	triggers.On("ScheduleFullSync").Return(nil).Once()
	h := NewIngestHandler(new(MockTicketSyncer), triggers, nil)

	w := httptest.NewRecorder()
	h.FullSync(w, httptest.NewRequest(http.MethodPost, "/ingest/full", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "background")
	triggers.AssertExpectations(t)
}

func TestIngestHandler_FullSyncQueueFull(t *testing.T) {
	triggers := new(MockSyncTriggers)
	triggers.On("ScheduleFullSync").Return(errors.New("too many goroutines blocked on submit or Nonblocking is set"))
	h := NewIngestHandler(new(MockTicketSyncer), triggers, nil)

	w := httptest.NewRecorder()
	h.FullSync(w, httptest.NewRequest(http.MethodPost, "/ingest/full", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestIngestHandler_SyncTicket(t *testing.T) {
	syncer := new(MockTicketSyncer)
	syncer.On("SyncTicket", mock.Anything, "t-1").Return(&ingestion.TicketSyncResult{TicketID: "t-1", ChunksCreated: 3, Success: true}, nil)
	syncer.On("SyncTicket", mock.Anything, "t-404").Return(&ingestion.TicketSyncResult{TicketID: "t-404", NotFound: true}, nil)
	syncer.On("SyncTicket", mock.Anything, "t-down").Return(nil, fmt.Errorf("%w: boom", domain.ErrSourceUnavailable))
	h := NewIngestHandler(syncer, new(MockSyncTriggers), nil)

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.SyncTicket(w, httptest.NewRequest(http.MethodPost, "/ingest/ticket", strings.NewReader(body)))
		return w
	}

	w := post(`{"ticket_id": "t-1"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"chunks_created":3`)

	w = post(`{"ticket_id": "t-404"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"not_found":true`)

	w = post(`{"ticket_id": "t-down"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = post(`{"ticket_id": " "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(`{bad`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestHandler_DeleteTicket(t *testing.T) {
	syncer := new(MockTicketSyncer)
	syncer.On("DeleteRecord", mock.Anything, "t-9").Return(true, nil)
	h := NewIngestHandler(syncer, new(MockSyncTriggers), nil)

	r := chi.NewRouter()
	r.Delete("/delete/ticket/{id}", h.DeleteTicket)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/delete/ticket/t-9", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ticket_id":"t-9"`)
	syncer.AssertExpectations(t)
}

func TestIngestHandler_TicketWebhook(t *testing.T) {
	triggers := new(MockSyncTriggers)
	triggers.On("TicketChanged", mock.MatchedBy(func(evt ingestion.WebhookEvent) bool {
		return evt.Type == "UPDATE" && evt.Record["id"] == "t-5"
	})).Return(ingestion.WebhookAck{Status: "accepted", Action: "sync", TicketID: "t-5"}, nil)
	triggers.On("TicketChanged", mock.MatchedBy(func(evt ingestion.WebhookEvent) bool {
		return evt.Type == "INSERT" && evt.Record["id"] == nil
	})).Return(ingestion.WebhookAck{Status: "ignored", Reason: "no ticket id in record"}, nil)
	triggers.On("TicketChanged", mock.MatchedBy(func(evt ingestion.WebhookEvent) bool {
		return evt.Type == "TRUNCATE"
	})).Return(ingestion.WebhookAck{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedEvent, "TRUNCATE"))
	triggers.On("TicketChanged", mock.MatchedBy(func(evt ingestion.WebhookEvent) bool {
		return evt.Type == "DELETE"
	})).Return(ingestion.WebhookAck{}, errors.New("pool overload"))
	h := NewIngestHandler(new(MockTicketSyncer), triggers, nil)

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.TicketWebhook(w, httptest.NewRequest(http.MethodPost, "/webhook/ticket", strings.NewReader(body)))
		return w
	}

	w := post(`{"type": "UPDATE", "table": "tickets", "record": {"id": "t-5"}}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"action":"sync"`)

	w = post(`{"type": "INSERT", "table": "tickets", "record": {}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ignored"`)

	w = post(`{"type": "TRUNCATE", "table": "tickets"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(`{"type": "DELETE", "table": "tickets", "old_record": {"id": "t-5"}}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestIngestHandler_CommentWebhook(t *testing.T) {
	triggers := new(MockSyncTriggers)
	triggers.On("CommentChanged", mock.Anything).Return(ingestion.WebhookAck{Status: "accepted", Action: "resync", TicketID: "t-2"}, nil)
	h := NewIngestHandler(new(MockTicketSyncer), triggers, nil)

	w := httptest.NewRecorder()
	h.CommentWebhook(w, httptest.NewRequest(http.MethodPost, "/webhook/comment",
		strings.NewReader(`{"type": "INSERT", "table": "ticket_comments", "record": {"ticket_id": "t-2"}}`)))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"action":"resync"`)
	triggers.AssertExpectations(t)
}
