//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartclaim/triage/internal/api/handlers"
	"github.com/smartclaim/triage/internal/api/middleware"
	"github.com/smartclaim/triage/internal/domain"
	"github.com/smartclaim/triage/internal/embedding/embeddingtest"
	"github.com/smartclaim/triage/internal/ingestion"
	"github.com/smartclaim/triage/internal/rag"
	"github.com/smartclaim/triage/internal/repository"
	"github.com/smartclaim/triage/internal/server"
	"github.com/smartclaim/triage/internal/sla"
	"github.com/smartclaim/triage/internal/tenant"
	"github.com/smartclaim/triage/internal/testutil"
	"github.com/smartclaim/triage/internal/vectorstore"
)

var jwtSecret = []byte("e2e-secret-0123456789abcdef")

// stubGenerator answers every prompt with a fixed string, so reranking falls
// back to similarity order.
type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, string, string) (string, error) {
	return "Here is what the tickets say.", nil
}

func (stubGenerator) Name() string { return "stub" }

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	Pool       *pgxpool.Pool
	Store      *vectorstore.Store
	Dispatcher *ingestion.Dispatcher
	Server     *httptest.Server
	HTTPClient *http.Client
}

// SetupE2EEnv starts the ticket database and serves the full router over an
// in-memory vector index with a deterministic embedder.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC)

	tickets := repository.NewTicketRepository(pool)
	store := vectorstore.NewStore(
		vectorstore.NewMemoryIndex("e2e_tickets"),
		embeddingtest.NewHashEmbedder(128),
		tenant.NewFilter(nil),
		vectorstore.Options{},
		nil,
	)
	if err := store.EnsureCollection(ctx); err != nil {
		t.Fatalf("failed to ensure collection: %v", err)
	}

	pipeline := ingestion.NewPipeline(tickets, store, nil, 10, nil)
	dispatcher, err := ingestion.NewDispatcher(2, time.Minute, nil)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}
	queries := rag.NewPipeline(store, stubGenerator{}, rag.Config{TopK: 10, RerankTopK: 5, LLMTimeout: 5 * time.Second}, nil)

	router := server.NewRouter(server.RouterConfig{
		SystemHandler: handlers.NewSystemHandler(store, tickets, nil),
		QueryHandler:  handlers.NewQueryHandler(queries, nil),
		IngestHandler: handlers.NewIngestHandler(pipeline, ingestion.NewTriggers(pipeline, dispatcher, nil), nil),
		SLAHandler:    handlers.NewSLAHandler(sla.NewEngine(nil, nil, nil), sla.NewTracker(), nil),
		JWTSecret:     jwtSecret,
	})

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		Pool:       pool,
		Store:      store,
		Dispatcher: dispatcher,
		Server:     httptest.NewServer(router),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.Dispatcher != nil {
		e.Dispatcher.Release(10 * time.Second)
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// Token signs an access token for the given identity.
func (e *E2ETestEnv) Token(userID string, role domain.Role, departmentID string) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.UserClaims{
		Role:         string(role),
		DepartmentID: departmentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwtSecret)
	if err != nil {
		e.T.Fatalf("failed to sign token: %v", err)
	}
	return token
}

// SeedTicket inserts a ticket into the source database and returns it.
func (e *E2ETestEnv) SeedTicket(title, description, createdBy, department, category string) *domain.Ticket {
	ticket := &domain.Ticket{
		ID:                   uuid.NewString(),
		TicketNumber:         fmt.Sprintf("TCK-%s", uuid.NewString()[:8]),
		Title:                title,
		Description:          description,
		Category:             category,
		Priority:             "high",
		Status:               "open",
		CreatedBy:            createdBy,
		AssignedToDepartment: department,
		CreatedAt:            time.Now().UTC(),
		UpdatedAt:            time.Now().UTC(),
	}
	if err := testutil.InsertTicket(e.Ctx, e.Pool, ticket); err != nil {
		e.T.Fatalf("failed to insert ticket: %v", err)
	}
	return ticket
}

// APIResponse is the server's response envelope.
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func (e *E2ETestEnv) Do(method, path string, body any, token string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, e.Server.URL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := &APIResponse{StatusCode: resp.StatusCode}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, apiResp); err != nil {
			return nil, fmt.Errorf("failed to parse response %q: %w", respBody, err)
		}
	}
	return apiResp, nil
}

func (e *E2ETestEnv) Post(path string, body any, token string) (*APIResponse, error) {
	return e.Do(http.MethodPost, path, body, token)
}
