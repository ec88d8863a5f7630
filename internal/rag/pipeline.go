// Package rag answers natural-language questions over the tickets a caller
// is allowed to see.
package rag

import (
	"context"
	"crypto/sha256"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/domain"
	"github.com/smartclaim/triage/internal/llm"
	"github.com/smartclaim/triage/internal/metrics"
	"github.com/smartclaim/triage/internal/telemetry"
	"github.com/smartclaim/triage/internal/vectorstore"
)

const (
	DefaultRerankTopK = 5
	dedupPrefixRunes  = 100
	contextSeparator  = "\n\n---\n\n"
)

// Searcher is the tenant-aware read side of the vector store.
type Searcher interface {
	Search(ctx context.Context, query string, uc domain.UserContext, opts vectorstore.SearchOptions) ([]domain.ScoredChunk, error)
}

type Config struct {
	TopK       int
	RerankTopK int
	LLMTimeout time.Duration
}

type QueryRequest struct {
	Query          string
	User           domain.UserContext
	TopK           int
	Rerank         *bool
	IncludeSources *bool
}

type Source struct {
	RecordID     string  `json:"ticket_id"`
	RecordNumber string  `json:"ticket_number,omitempty"`
	Category     string  `json:"category,omitempty"`
	ChunkType    string  `json:"chunk_type"`
	Score        float32 `json:"relevance_score"`
}

type QueryResponse struct {
	Answer             string   `json:"answer"`
	Sources            []Source `json:"sources"`
	ContextUsed        bool     `json:"context_used"`
	NumChunksRetrieved int      `json:"num_chunks_retrieved"`
	Broad              bool     `json:"broad_query"`
}

// Pipeline is stateless per request; it can be shared across goroutines.
type Pipeline struct {
	searcher  Searcher
	generator llm.Generator
	cfg       Config
	logger    *zap.Logger
}

func NewPipeline(searcher Searcher, generator llm.Generator, cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = vectorstore.DefaultTopK
	}
	if cfg.RerankTopK <= 0 {
		cfg.RerankTopK = DefaultRerankTopK
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{searcher: searcher, generator: generator, cfg: cfg, logger: logger.Named("rag")}
}

// Query runs retrieval and answer generation for one request. Upstream
// failures degrade to a role-specific answer; only invalid input is an error.
func (p *Pipeline) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	topK := req.TopK
	if topK == 0 {
		topK = p.cfg.TopK
	}
	if topK < 1 || topK > vectorstore.MaxTopK {
		return nil, domain.ErrInvalidTopK
	}
	role := req.User.Role

	ctx, span := telemetry.StartSpan(ctx, "rag.query", telemetry.Fields{
		UserID:    req.User.UserID,
		Role:      string(role),
		Operation: "query",
	})
	defer span.End()

	broad := IsBroadQuery(query)
	opts := vectorstore.SearchOptions{TopK: topK}
	if broad {
		opts.ScoreThreshold = vectorstore.Threshold(0)
	}

	results, err := p.searcher.Search(ctx, query, req.User, opts)
	if err != nil {
		p.logger.Error("search failed", zap.String("user_id", req.User.UserID), zap.Error(err))
		span.Fail(err)
		metrics.RecordQuery(string(role), "search_error")
		return p.noContext(query, role, broad), nil
	}
	if len(results) == 0 {
		metrics.RecordQuery(string(role), "no_results")
		return p.noContext(query, role, broad), nil
	}

	// Broad queries list every matching ticket, so they keep all retrieved
	// chunks up to top_k instead of cutting to the rerank budget.
	retrieved := len(results)
	if !broad {
		if boolOr(req.Rerank, true) && len(results) > p.cfg.RerankTopK {
			results = p.rerank(ctx, query, results)
		}
		if len(results) > p.cfg.RerankTopK {
			results = results[:p.cfg.RerankTopK]
		}
	}

	answer := p.generate(ctx, query, BuildContext(results), role)

	resp := &QueryResponse{
		Answer:             answer,
		Sources:            []Source{},
		ContextUsed:        true,
		NumChunksRetrieved: retrieved,
		Broad:              broad,
	}
	if boolOr(req.IncludeSources, true) {
		resp.Sources = FormatSources(results)
	}

	metrics.RecordQuery(string(role), "answered")
	return resp, nil
}

func (p *Pipeline) noContext(query string, role domain.Role, broad bool) *QueryResponse {
	return &QueryResponse{
		Answer:  noContextAnswer(query, role),
		Sources: []Source{},
		Broad:   broad,
	}
}

func (p *Pipeline) generate(ctx context.Context, query, promptContext string, role domain.Role) string {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.LLMTimeout)
	defer cancel()

	answer, err := p.generator.Generate(ctx, systemPrompt(role), answerPrompt(query, promptContext))
	if err != nil || strings.TrimSpace(answer) == "" {
		p.logger.Error("answer generation failed", zap.Error(err))
		return generationErrorAnswer
	}
	return answer
}

// BuildContext formats results for the prompt, skipping chunks whose first
// 100 runes were already included.
func BuildContext(results []domain.ScoredChunk) string {
	seen := make(map[[sha256.Size]byte]bool, len(results))
	parts := make([]string, 0, len(results))
	for _, r := range results {
		key := sha256.Sum256([]byte(truncateRunes(r.Content, dedupPrefixRunes)))
		if seen[key] {
			continue
		}
		seen[key] = true

		number := r.Metadata.RecordNumber
		if number == "" {
			number = "Unknown"
		}
		kind := string(r.Metadata.ChunkType)
		if kind == "" {
			kind = "content"
		}
		parts = append(parts, "[Ticket "+number+" - "+kind+"]\n"+r.Content)
	}
	return strings.Join(parts, contextSeparator)
}

// FormatSources returns one source per distinct record, in result order.
func FormatSources(results []domain.ScoredChunk) []Source {
	seen := make(map[string]bool)
	sources := make([]Source, 0, len(results))
	for _, r := range results {
		id := r.Metadata.RecordID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		sources = append(sources, Source{
			RecordID:     id,
			RecordNumber: r.Metadata.RecordNumber,
			Category:     r.Metadata.Category,
			ChunkType:    string(r.Metadata.ChunkType),
			Score:        r.Score,
		})
	}
	return sources
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
