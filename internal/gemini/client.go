// Package gemini adapts the Google Gen AI SDK to the embedding and
// generation interfaces used by the retrieval pipeline.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	DefaultEmbeddingModel = "gemini-embedding-001"
	DefaultChatModel      = "gemini-2.5-flash"

	// Embeddings are requested for storage, queries use the same task type so
	// both sides live in one space.
	embeddingTaskType = "RETRIEVAL_DOCUMENT"
)

var (
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	ErrEmptyResponse   = errors.New("empty response from gemini")
)

// API is the subset of genai.Models the client calls.
type API interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Config struct {
	APIKey              string
	EmbeddingModel      string
	EmbeddingDimensions int
	ChatModel           string
}

type Client struct {
	api            API
	embeddingModel string
	chatModel      string
	dimensions     int32
}

// NewClient dials the Gemini API. The returned client is safe for concurrent use.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newClient(c.Models, cfg), nil
}

func newClient(api API, cfg Config) *Client {
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	return &Client{
		api:            api,
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
		dimensions:     int32(cfg.EmbeddingDimensions),
	}
}

func (c *Client) Model() string {
	return c.embeddingModel
}

func (c *Client) Name() string {
	return "gemini/" + c.chatModel
}

// EmbedBatch returns one embedding per text in input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, ErrEmptyText
		}
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: text}}})
	}

	cfg := &genai.EmbedContentConfig{TaskType: embeddingTaskType}
	if c.dimensions > 0 {
		dim := c.dimensions
		cfg.OutputDimensionality = &dim
	}

	resp, err := c.api.EmbedContent(ctx, c.embeddingModel, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings: %w", len(texts), ErrEmptyResponse)
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil {
			return nil, ErrEmptyResponse
		}
		if c.dimensions > 0 && len(e.Values) != int(c.dimensions) {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(e.Values))
		}
		out[i] = e.Values
	}
	return out, nil
}

// Generate runs a single-turn completion with system as the system instruction.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	resp, err := c.api.GenerateContent(ctx, c.chatModel, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
