package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/api/handlers"
	"github.com/smartclaim/triage/internal/config"
	"github.com/smartclaim/triage/internal/ingestion"
	"github.com/smartclaim/triage/internal/jobs"
	"github.com/smartclaim/triage/internal/logging"
	"github.com/smartclaim/triage/internal/server"
	"github.com/smartclaim/triage/internal/sla"
	"github.com/smartclaim/triage/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the ticket retrieval and SLA prediction API on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides CLAIMD_PORT)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	logger := logging.Must(cfg.LogLevel, cfg.Debug)
	defer func() { _ = logger.Sync() }()

	// Default to 10% sampling in production, 100% in development
	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}
	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		SampleRate:  sampleRate,
		Debug:       cfg.Debug,
		Logger:      logger,
	})
	if err != nil {
		logger.Warn("telemetry init failed (continuing without tracing)", zap.Error(err))
	} else {
		defer shutdownTelemetry()
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("failed to ensure collection %q: %w", cfg.CollectionName, err)
	}
	logger.Info("collection ready", zap.String("collection", cfg.CollectionName), zap.Int("dimension", cfg.EmbeddingDimension))

	queryPipeline, err := a.newQueryPipeline(ctx)
	if err != nil {
		return err
	}

	dispatcher, err := ingestion.NewDispatcher(cfg.SyncWorkers, cfg.SyncTimeout, logger)
	if err != nil {
		return fmt.Errorf("failed to create sync dispatcher: %w", err)
	}
	defer dispatcher.Release(30 * time.Second)
	triggers := ingestion.NewTriggers(a.pipeline, dispatcher, logger)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	var reconcileWorker *jobs.Worker
	if cfg.SyncInterval > 0 {
		reconcileWorker = jobs.NewWorker("reconcile", a.pipeline, cfg.SyncInterval, jobs.Options{RoundTimeout: cfg.SyncInterval}, logger)
		go reconcileWorker.Start(workerCtx)
	}

	router := server.NewRouter(server.RouterConfig{
		SystemHandler: handlers.NewSystemHandler(a.store, a.tickets, logger),
		QueryHandler:  handlers.NewQueryHandler(queryPipeline, logger),
		IngestHandler: handlers.NewIngestHandler(a.pipeline, triggers, logger),
		SLAHandler:    handlers.NewSLAHandler(newSLAEngine(ctx, cfg, logger), sla.NewTracker(), logger),
		JWTSecret:     []byte(cfg.JWTSecret),
		Logger:        logger,
	})
	if !cfg.HasJWT() {
		logger.Warn("JWT_SECRET not set; query and admin routes are unauthenticated")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info("shutting down...")

	if reconcileWorker != nil {
		reconcileWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
