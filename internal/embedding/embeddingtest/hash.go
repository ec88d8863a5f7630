// Package embeddingtest provides a deterministic embedder for tests that
// need similarity search without a model provider.
package embeddingtest

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashEmbedder is a deterministic bag-of-words embedder for tests. Texts
// sharing words have positive cosine similarity; texts with no words in
// common usually score 0.
type HashEmbedder struct {
	Dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{Dim: dim}
}

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, h.Dim)
	for _, token := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(token))
		v[f.Sum32()%uint32(h.Dim)]++
	}
	return v, nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (h *HashEmbedder) Dimension() int {
	return h.Dim
}

func (h *HashEmbedder) Model() string {
	return "hash-test"
}
