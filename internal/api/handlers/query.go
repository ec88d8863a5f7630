package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/api"
	"github.com/smartclaim/triage/internal/api/middleware"
	"github.com/smartclaim/triage/internal/domain"
	"github.com/smartclaim/triage/internal/rag"
)

type QueryService interface {
	Query(ctx context.Context, req rag.QueryRequest) (*rag.QueryResponse, error)
}

type QueryHandler struct {
	svc    QueryService
	logger *zap.Logger
}

func NewQueryHandler(svc QueryService, logger *zap.Logger) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{svc: svc, logger: logger.Named("query_handler")}
}

type UserContextRequest struct {
	UserID       string `json:"user_id"`
	Role         string `json:"role"`
	DepartmentID string `json:"department_id,omitempty"`
}

type QueryRequest struct {
	Query          string              `json:"query"`
	UserContext    *UserContextRequest `json:"user_context"`
	TopK           int                 `json:"top_k,omitempty"`
	Rerank         *bool               `json:"rerank,omitempty"`
	IncludeSources *bool               `json:"include_sources,omitempty"`
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := resolveUser(r.Context(), req.UserContext)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp, err := h.svc.Query(r.Context(), rag.QueryRequest{
		Query:          req.Query,
		User:           user,
		TopK:           req.TopK,
		Rerank:         req.Rerank,
		IncludeSources: req.IncludeSources,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, resp)
}

// resolveUser prefers the verified token identity. A body user_context that
// disagrees with the token is rejected; without a token the body is trusted.
func resolveUser(ctx context.Context, body *UserContextRequest) (domain.UserContext, error) {
	if tokenUser, ok := middleware.GetUserContext(ctx); ok {
		if body != nil {
			claimed, err := domain.NewUserContext(body.UserID, body.Role, body.DepartmentID)
			if err != nil || claimed != tokenUser {
				return domain.UserContext{}, domain.NewDomainError(domain.ErrCodeForbidden, "user_context does not match token")
			}
		}
		return tokenUser, nil
	}

	if body == nil {
		return domain.UserContext{}, domain.ErrMissingUserContext
	}
	return domain.NewUserContext(body.UserID, body.Role, body.DepartmentID)
}
