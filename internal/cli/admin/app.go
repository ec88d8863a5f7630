package admin

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/chunking"
	"github.com/smartclaim/triage/internal/config"
	"github.com/smartclaim/triage/internal/database"
	"github.com/smartclaim/triage/internal/embedding"
	"github.com/smartclaim/triage/internal/gemini"
	"github.com/smartclaim/triage/internal/ingestion"
	"github.com/smartclaim/triage/internal/llm"
	"github.com/smartclaim/triage/internal/openai"
	"github.com/smartclaim/triage/internal/rag"
	"github.com/smartclaim/triage/internal/repository"
	"github.com/smartclaim/triage/internal/sla"
	"github.com/smartclaim/triage/internal/storage"
	"github.com/smartclaim/triage/internal/tenant"
	"github.com/smartclaim/triage/internal/vectorstore"
)

// app holds the process-wide dependencies shared by serve and the one-shot
// admin commands. Everything is built once and injected.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	source   *pgxpool.Pool
	tickets  *repository.TicketRepository
	store    *vectorstore.Store
	pipeline *ingestion.Pipeline
	closers  []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if !cfg.HasEmbeddingProvider() {
		return nil, fmt.Errorf("no api key for embedding provider %q", cfg.EmbeddingProvider)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, Purpose: "source", StatementTimeout: cfg.VectorTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ticket database: %w", err)
	}
	a.source = pool
	a.closers = append(a.closers, pool.Close)
	a.tickets = repository.NewTicketRepository(pool)
	logger.Info("connected to ticket database")

	index, err := a.openIndex(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	provider, err := newEmbeddingProvider(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if cfg.HasRedis() {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		provider = embedding.NewCachedProvider(provider, rdb, cfg.EmbeddingCacheTTL, logger)
		logger.Info("embedding cache enabled")
	}

	embedder := embedding.NewService(provider, embedding.Config{
		Dimension: cfg.EmbeddingDimension,
		BatchSize: cfg.EmbeddingBatchSize,
		Timeout:   cfg.EmbeddingTimeout,
		RPS:       cfg.EmbeddingRPS,
	}, logger)

	a.store = vectorstore.NewStore(index, embedder, tenant.NewFilter(logger), vectorstore.Options{
		DefaultThreshold: cfg.SimilarityThreshold,
		Timeout:          cfg.VectorTimeout,
	}, logger)
	a.closers = append(a.closers, func() { _ = a.store.Close() })

	chunker := chunking.NewTicketChunker(chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap))
	a.pipeline = ingestion.NewPipeline(a.tickets, a.store, chunker, cfg.SyncBatchSize, logger)

	return a, nil
}

func (a *app) openIndex(ctx context.Context) (vectorstore.Index, error) {
	cfg := a.cfg
	switch cfg.VectorBackend {
	case config.BackendQdrant:
		idx, err := vectorstore.NewQdrantIndex(vectorstore.QdrantConfig{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			UseTLS:     cfg.QdrantUseTLS,
			Collection: cfg.CollectionName,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		a.logger.Info("using qdrant vector index", zap.String("host", cfg.QdrantHost), zap.Int("port", cfg.QdrantPort))
		return idx, nil

	case config.BackendPgvector:
		if err := database.Migrate(cfg.VectorDSN(), a.logger); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		pool := a.source
		if cfg.VectorDatabaseURL != "" {
			var err error
			pool, err = database.NewPool(ctx, database.Config{URL: cfg.VectorDatabaseURL, Purpose: "vector", StatementTimeout: cfg.VectorTimeout})
			if err != nil {
				return nil, fmt.Errorf("failed to connect to vector database: %w", err)
			}
			a.closers = append(a.closers, pool.Close)
		}
		a.logger.Info("using pgvector index")
		return vectorstore.NewPgvectorIndex(pool, cfg.CollectionName), nil

	default:
		a.logger.Warn("using in-memory vector index; data is lost on restart")
		return vectorstore.NewMemoryIndex(cfg.CollectionName), nil
	}
}

// newEmbeddingProvider returns the configured embedding API client.
func newEmbeddingProvider(ctx context.Context, cfg *config.Config) (embedding.Provider, error) {
	if cfg.EmbeddingProvider == config.ProviderGemini {
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:              cfg.GeminiAPIKey,
			EmbeddingModel:      cfg.EmbeddingModel,
			EmbeddingDimensions: cfg.EmbeddingDimension,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return openai.NewClient(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimension,
	}), nil
}

// newGenerator returns the configured chat model behind a circuit breaker.
func newGenerator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (llm.Generator, error) {
	if !cfg.HasLLMProvider() {
		return nil, fmt.Errorf("no api key for llm provider %q", cfg.LLMProvider)
	}

	var gen llm.Generator
	if cfg.LLMProvider == config.ProviderOpenAI {
		gen = openai.NewClient(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.OpenAIBaseURL,
			EmbeddingDimensions: cfg.EmbeddingDimension,
			ChatModel:           cfg.LLMModel,
		})
	} else {
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:              cfg.GeminiAPIKey,
			EmbeddingDimensions: cfg.EmbeddingDimension,
			ChatModel:           cfg.LLMModel,
		})
		if err != nil {
			return nil, err
		}
		gen = c
	}
	return llm.NewBreakerGenerator(gen, llm.BreakerConfig{Timeout: cfg.LLMTimeout}, logger), nil
}

func (a *app) newQueryPipeline(ctx context.Context) (*rag.Pipeline, error) {
	gen, err := newGenerator(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	return rag.NewPipeline(a.store, gen, rag.Config{
		TopK:       a.cfg.TopK,
		RerankTopK: a.cfg.RerankTopK,
		LLMTimeout: a.cfg.LLMTimeout,
	}, a.logger), nil
}

// Close releases resources in reverse construction order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newS3Client(ctx context.Context, cfg *config.Config) (*storage.S3Client, error) {
	if !cfg.HasS3() {
		return nil, fmt.Errorf("S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required")
	}
	return storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		UsePathStyle:    true,
	})
}

// newSLAEngine loads the trained model when SLA_MODEL_PATH is set. A model
// that fails to load leaves the engine rule-only.
func newSLAEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) *sla.Engine {
	if cfg.SLAModelPath == "" {
		return sla.NewEngine(nil, nil, logger)
	}

	var objects sla.ObjectGetter
	if storage.IsURI(cfg.SLAModelPath) {
		s3, err := newS3Client(ctx, cfg)
		if err != nil {
			logger.Warn("sla model not loaded", zap.Error(err))
			return sla.NewEngine(nil, nil, logger)
		}
		objects = s3
	}

	model, err := sla.LoadModel(ctx, cfg.SLAModelPath, objects)
	if err != nil {
		logger.Warn("sla model not loaded, using rules only", zap.String("path", cfg.SLAModelPath), zap.Error(err))
		return sla.NewEngine(nil, nil, logger)
	}
	logger.Info("sla model loaded", zap.String("path", cfg.SLAModelPath), zap.String("name", model.Name))
	return sla.NewEngine(nil, sla.NewModelEngine(model, logger), logger)
}
