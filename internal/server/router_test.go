package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/smartclaim/triage/internal/api/handlers"
	"github.com/smartclaim/triage/internal/api/middleware"
	"github.com/smartclaim/triage/internal/ingestion"
	"github.com/smartclaim/triage/internal/rag"
	"github.com/smartclaim/triage/internal/sla"
	"github.com/smartclaim/triage/internal/vectorstore"
)

var testSecret = []byte("router-secret-0123456789")

type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) Query(ctx context.Context, req rag.QueryRequest) (*rag.QueryResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rag.QueryResponse), args.Error(1)
}

type MockCollectionService struct {
	mock.Mock
}

func (m *MockCollectionService) Stats(ctx context.Context) (vectorstore.Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(vectorstore.Stats), args.Error(1)
}

func (m *MockCollectionService) Recreate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockCollectionService) EmbeddingModel() string {
	return m.Called().String(0)
}

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

type testDeps struct {
	query      *MockQueryService
	collection *MockCollectionService
	syncer     *MockTicketSyncer
	triggers   *MockSyncTriggers
}

func setupRouter(secret []byte) (http.Handler, testDeps) {
	deps := testDeps{
		query:      new(MockQueryService),
		collection: new(MockCollectionService),
		syncer:     new(MockTicketSyncer),
		triggers:   new(MockSyncTriggers),
	}

	router := NewRouter(RouterConfig{
		SystemHandler: handlers.NewSystemHandler(deps.collection, nil, nil),
		QueryHandler:  handlers.NewQueryHandler(deps.query, nil),
		IngestHandler: handlers.NewIngestHandler(deps.syncer, deps.triggers, nil),
		SLAHandler:    handlers.NewSLAHandler(sla.NewEngine(nil, nil, nil), nil, nil),
		JWTSecret:     secret,
	})
	return router, deps
}

func bearer(t *testing.T, sub, role string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.UserClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(testSecret)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouter_Health(t *testing.T) {
	router, deps := setupRouter(nil)
	deps.collection.On("EmbeddingModel").Return("text-embedding-3-small")
	deps.collection.On("Stats", mock.Anything).Return(vectorstore.Stats{Collection: "smartclaim_tickets"}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_PublicRoutes(t *testing.T) {
	router, _ := setupRouter(testSecret)

	routes := []struct {
		method, path, body string
		status             int
	}{
		{http.MethodPost, "/sla/predict", `{"category": "hr", "priority": "low"}`, http.StatusOK},
		{http.MethodPost, "/sla/predict/from-aggregation", `{"final_category": "hr", "final_priority": "low"}`, http.StatusOK},
		{http.MethodGet, "/sla/config", "", http.StatusOK},
		{http.MethodGet, "/sla/metrics", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(route.method, route.path, strings.NewReader(route.body)))
			assert.Equal(t, route.status, w.Code)
		})
	}
}

func TestRouter_ProtectedRoutes_NoAuth(t *testing.T) {
	router, deps := setupRouter(testSecret)

	routes := []struct {
		method, path string
	}{
		{http.MethodPost, "/query"},
		{http.MethodPost, "/ingest/full"},
		{http.MethodPost, "/ingest/ticket"},
		{http.MethodDelete, "/delete/ticket/t-1"},
		{http.MethodPost, "/admin/recreate-collection"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(route.method, route.path, nil))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	deps.query.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
	deps.syncer.AssertNotCalled(t, "DeleteRecord", mock.Anything, mock.Anything)
}

func TestRouter_AdminRoutesRequireAdminRole(t *testing.T) {
	router, deps := setupRouter(testSecret)
	deps.syncer.On("DeleteRecord", mock.Anything, "t-1").Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/delete/ticket/t-1", nil)
	req.Header.Set("Authorization", bearer(t, "u-1", "worker"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodDelete, "/delete/ticket/t-1", nil)
	req.Header.Set("Authorization", bearer(t, "u-2", "admin"))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	deps.syncer.AssertExpectations(t)
}

func TestRouter_QueryUsesTokenIdentity(t *testing.T) {
	router, deps := setupRouter(testSecret)
	deps.query.On("Query", mock.Anything, mock.MatchedBy(func(req rag.QueryRequest) bool {
		return req.User.UserID == "u-7" && req.Query == "open tickets"
	})).Return(&rag.QueryResponse{Answer: "none"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query": "open tickets"}`))
	req.Header.Set("Authorization", bearer(t, "u-7", "worker"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	deps.query.AssertExpectations(t)
}

func TestRouter_OpenWithoutSecret(t *testing.T) {
	router, deps := setupRouter(nil)
	deps.triggers.On("ScheduleFullSync").Return(nil).Once()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ingest/full", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	deps.triggers.AssertExpectations(t)
}

func TestRouter_Webhooks(t *testing.T) {
	router, deps := setupRouter(testSecret)
	deps.triggers.On("TicketChanged", mock.Anything).Return(ingestion.WebhookAck{Status: "accepted", Action: "sync", TicketID: "t-3"}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook/ticket",
		strings.NewReader(`{"type": "INSERT", "table": "tickets", "record": {"id": "t-3"}}`)))

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	router, _ := setupRouter(nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/knowledge", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
