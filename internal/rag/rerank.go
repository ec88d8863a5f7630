package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/domain"
)

const rerankSnippetRunes = 200

func rerankPrompt(query string, results []domain.ScoredChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rate the relevance of each document to the query on a scale of 0-10.\n\nQuery: %s\n\nDocuments:\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "\n[%d] %s...\n", i, truncateRunes(r.Content, rerankSnippetRunes))
	}
	b.WriteString("\nRespond with just the document numbers in order of relevance (most relevant first), comma-separated. Example: 2,0,3,1,4")
	return b.String()
}

// rerank asks the generator for an ordering. Any failure keeps the
// similarity order.
func (p *Pipeline) rerank(ctx context.Context, query string, results []domain.ScoredChunk) []domain.ScoredChunk {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.LLMTimeout)
	defer cancel()

	out, err := p.generator.Generate(ctx, "", rerankPrompt(query, results))
	if err != nil {
		p.logger.Warn("rerank failed, keeping similarity order", zap.Error(err))
		return results
	}
	order, ok := parseOrder(out, len(results))
	if !ok {
		p.logger.Warn("rerank output unparseable, keeping similarity order", zap.String("output", truncateRunes(out, 100)))
		return results
	}

	reranked := make([]domain.ScoredChunk, len(order))
	for i, idx := range order {
		reranked[i] = results[idx]
	}
	return reranked
}

// parseOrder reads a comma-separated index list. Out-of-range and repeated
// indexes are skipped and missing ones are appended in original order. Any
// token that is not an integer makes the whole output invalid.
func parseOrder(out string, n int) ([]int, bool) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, false
	}

	seen := make(map[int]bool, n)
	order := make([]int, 0, n)
	for _, tok := range strings.Split(out, ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return nil, false
		}
		if idx < 0 || idx >= n || seen[idx] {
			continue
		}
		seen[idx] = true
		order = append(order, idx)
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			order = append(order, i)
		}
	}
	return order, true
}
