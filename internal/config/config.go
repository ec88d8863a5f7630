package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "CLAIMD"

// Vector index backends.
const (
	BackendQdrant   = "qdrant"
	BackendPgvector = "pgvector"
	BackendMemory   = "memory"
)

// Embedding and generation providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`

	// Source-of-truth ticket database (read only).
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	VectorBackend     string `envconfig:"VECTOR_BACKEND" default:"qdrant"`
	VectorDatabaseURL string `envconfig:"VECTOR_DATABASE_URL"`
	QdrantHost        string `envconfig:"QDRANT_HOST" default:"localhost"`
	QdrantPort        int    `envconfig:"QDRANT_PORT" default:"6334"`
	QdrantAPIKey      string `envconfig:"QDRANT_API_KEY"`
	QdrantUseTLS      bool   `envconfig:"QDRANT_USE_TLS" default:"false"`
	CollectionName    string `envconfig:"COLLECTION_NAME" default:"smartclaim_tickets"`

	EmbeddingProvider  string        `envconfig:"EMBEDDING_PROVIDER" default:"openai"`
	EmbeddingModel     string        `envconfig:"EMBEDDING_MODEL"`
	EmbeddingDimension int           `envconfig:"EMBEDDING_DIMENSION" default:"384"`
	EmbeddingBatchSize int           `envconfig:"EMBEDDING_BATCH_SIZE" default:"64"`
	EmbeddingRPS       float64       `envconfig:"EMBEDDING_RPS" default:"10"`
	EmbeddingCacheTTL  time.Duration `envconfig:"EMBEDDING_CACHE_TTL" default:"1h"`
	LLMProvider        string        `envconfig:"LLM_PROVIDER" default:"gemini"`
	LLMModel           string        `envconfig:"LLM_MODEL"`
	OpenAIAPIKey       string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL      string        `envconfig:"OPENAI_BASE_URL"`
	GeminiAPIKey       string        `envconfig:"GEMINI_API_KEY"`

	EmbeddingTimeout time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"15s"`
	VectorTimeout    time.Duration `envconfig:"VECTOR_TIMEOUT" default:"10s"`
	LLMTimeout       time.Duration `envconfig:"LLM_TIMEOUT" default:"30s"`

	ChunkSize           int     `envconfig:"CHUNK_SIZE" default:"512"`
	ChunkOverlap        int     `envconfig:"CHUNK_OVERLAP" default:"50"`
	TopK                int     `envconfig:"TOP_K" default:"10"`
	SimilarityThreshold float32 `envconfig:"SIMILARITY_THRESHOLD" default:"0.2"`
	RerankTopK          int     `envconfig:"RERANK_TOP_K" default:"5"`

	SyncBatchSize int           `envconfig:"SYNC_BATCH_SIZE" default:"50"`
	SyncWorkers   int           `envconfig:"SYNC_WORKERS" default:"4"`
	SyncTimeout   time.Duration `envconfig:"SYNC_TIMEOUT" default:"5m"`
	SyncInterval  time.Duration `envconfig:"SYNC_INTERVAL" default:"0s"`

	RedisURL  string `envconfig:"REDIS_URL"`
	JWTSecret string `envconfig:"JWT_SECRET"`

	// SLA model artifact: local path or s3://bucket/key.
	SLAModelPath string `envconfig:"SLA_MODEL_PATH"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.VectorBackend {
	case BackendQdrant, BackendPgvector, BackendMemory:
	default:
		return fmt.Errorf("invalid VECTOR_BACKEND %q", c.VectorBackend)
	}
	for name, provider := range map[string]string{"EMBEDDING_PROVIDER": c.EmbeddingProvider, "LLM_PROVIDER": c.LLMProvider} {
		if provider != ProviderOpenAI && provider != ProviderGemini {
			return fmt.Errorf("invalid %s %q", name, provider)
		}
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive")
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be smaller than CHUNK_SIZE")
	}
	if c.TopK <= 0 || c.RerankTopK <= 0 {
		return fmt.Errorf("TOP_K and RERANK_TOP_K must be positive")
	}
	return nil
}

// VectorDSN returns the pgvector connection string, defaulting to the source database.
func (c *Config) VectorDSN() string {
	if c.VectorDatabaseURL != "" {
		return c.VectorDatabaseURL
	}
	return c.DatabaseURL
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasGemini() bool {
	return c.GeminiAPIKey != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

func (c *Config) HasJWT() bool {
	return c.JWTSecret != ""
}

// HasEmbeddingProvider reports whether the selected embedding provider has credentials.
func (c *Config) HasEmbeddingProvider() bool {
	if c.EmbeddingProvider == ProviderGemini {
		return c.HasGemini()
	}
	return c.HasOpenAI()
}

// HasLLMProvider reports whether the selected generation provider has credentials.
func (c *Config) HasLLMProvider() bool {
	if c.LLMProvider == ProviderOpenAI {
		return c.HasOpenAI()
	}
	return c.HasGemini()
}
