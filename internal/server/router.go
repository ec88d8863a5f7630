package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/api/handlers"
	"github.com/smartclaim/triage/internal/api/middleware"
	"github.com/smartclaim/triage/internal/domain"
	"github.com/smartclaim/triage/internal/metrics"
)

type RouterConfig struct {
	SystemHandler *handlers.SystemHandler
	QueryHandler  *handlers.QueryHandler
	IngestHandler *handlers.IngestHandler
	SLAHandler    *handlers.SLAHandler

	// JWTSecret enables bearer token auth on /query and the admin role on
	// ingest, delete and collection routes. Empty leaves them open.
	JWTSecret []byte
	Logger    *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(logger.Named("http")))
	r.Use(middleware.Metrics)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", cfg.SystemHandler.Health)
	r.Get("/stats", cfg.SystemHandler.Stats)
	r.Handle("/metrics", metrics.Handler())

	r.Post("/webhook/ticket", cfg.IngestHandler.TicketWebhook)
	r.Post("/webhook/comment", cfg.IngestHandler.CommentWebhook)

	r.Route("/sla", func(r chi.Router) {
		r.Post("/predict", cfg.SLAHandler.Predict)
		r.Post("/predict/from-aggregation", cfg.SLAHandler.PredictFromAggregation)
		r.Get("/config", cfg.SLAHandler.Config)
		r.Get("/metrics", cfg.SLAHandler.Metrics)
	})

	authed := len(cfg.JWTSecret) > 0

	r.Group(func(r chi.Router) {
		if authed {
			r.Use(middleware.UserContextAuth(cfg.JWTSecret, logger))
		}
		r.Post("/query", cfg.QueryHandler.Query)
	})

	r.Group(func(r chi.Router) {
		if authed {
			r.Use(middleware.UserContextAuth(cfg.JWTSecret, logger))
			r.Use(middleware.RequireRole(domain.RoleAdmin))
		}
		r.Post("/ingest/full", cfg.IngestHandler.FullSync)
		r.Post("/ingest/ticket", cfg.IngestHandler.SyncTicket)
		r.Delete("/delete/ticket/{id}", cfg.IngestHandler.DeleteTicket)
		r.Post("/admin/recreate-collection", cfg.SystemHandler.RecreateCollection)
	})

	return r
}
