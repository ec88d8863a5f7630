package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/api"
	"github.com/smartclaim/triage/internal/vectorstore"
)

type CollectionService interface {
	Stats(ctx context.Context) (vectorstore.Stats, error)
	Recreate(ctx context.Context) error
	EmbeddingModel() string
}

// Pinger checks a dependency's reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type SystemHandler struct {
	collection CollectionService
	source     Pinger
	logger     *zap.Logger
}

// NewSystemHandler accepts a nil source when the ticket database is not
// reachable from this process.
func NewSystemHandler(collection CollectionService, source Pinger, logger *zap.Logger) *SystemHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemHandler{collection: collection, source: source, logger: logger.Named("system_handler")}
}

type HealthResponse struct {
	Status         string `json:"status"`
	VectorStore    string `json:"vector_store"`
	SourceDatabase string `json:"source_database,omitempty"`
	EmbeddingModel string `json:"embedding_model"`
	Collection     string `json:"collection,omitempty"`
}

type AdminResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:         "healthy",
		VectorStore:    "connected",
		EmbeddingModel: h.collection.EmbeddingModel(),
	}
	status := http.StatusOK

	stats, err := h.collection.Stats(r.Context())
	if err != nil {
		h.logger.Warn("vector store health check failed", zap.Error(err))
		resp.Status = "unhealthy"
		resp.VectorStore = "unreachable"
		status = http.StatusServiceUnavailable
	} else {
		resp.Collection = stats.Collection
	}

	if h.source != nil {
		resp.SourceDatabase = "connected"
		if err := h.source.Ping(r.Context()); err != nil {
			h.logger.Warn("source database health check failed", zap.Error(err))
			resp.SourceDatabase = "unreachable"
			if resp.Status == "healthy" {
				resp.Status = "degraded"
			}
		}
	}

	api.JSON(w, status, resp)
}

func (h *SystemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.collection.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, stats)
}

func (h *SystemHandler) RecreateCollection(w http.ResponseWriter, r *http.Request) {
	if err := h.collection.Recreate(r.Context()); err != nil {
		h.logger.Error("recreate collection failed", zap.Error(err))
		api.JSON(w, api.DomainErrorToHTTP(err), AdminResult{
			Success: false,
			Message: "failed to recreate collection",
			Details: map[string]any{"error": err.Error()},
		})
		return
	}

	result := AdminResult{Success: true, Message: "collection recreated"}
	if stats, err := h.collection.Stats(r.Context()); err == nil {
		result.Details = map[string]any{
			"collection":   stats.Collection,
			"dimension":    stats.Dimension,
			"points_count": stats.PointsCount,
		}
	}
	api.Success(w, http.StatusOK, result)
}
