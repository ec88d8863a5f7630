// Package openai adapts the OpenAI API (or any compatible gateway) to the
// embedding provider and answer generator interfaces.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/smartclaim/triage/internal/metrics"
)

const (
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions matches the collection size used by the ticket index.
	DefaultEmbeddingDimensions = 384
	DefaultChatModel           = openai.GPT4oMini
	// DefaultTemperature keeps reranking output stable between calls.
	DefaultTemperature float32 = 0.2
)

var (
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	ErrEmptyCompletion = errors.New("no completion returned")
)

type Config struct {
	APIKey string
	// BaseURL points the client at a compatible gateway. Empty uses api.openai.com.
	BaseURL             string
	EmbeddingModel      string
	EmbeddingDimensions int
	ChatModel           string
	Temperature         float32
}

// Client embeds ticket text and generates answers with one API key.
type Client struct {
	api            *openai.Client
	embeddingModel openai.EmbeddingModel
	chatModel      string
	dimensions     int
	temperature    float32
}

func NewClient(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	c := &Client{
		api:            openai.NewClientWithConfig(oc),
		embeddingModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		chatModel:      cfg.ChatModel,
		dimensions:     cfg.EmbeddingDimensions,
		temperature:    cfg.Temperature,
	}
	if c.embeddingModel == "" {
		c.embeddingModel = DefaultEmbeddingModel
	}
	if c.chatModel == "" {
		c.chatModel = DefaultChatModel
	}
	if c.dimensions <= 0 {
		c.dimensions = DefaultEmbeddingDimensions
	}
	if c.temperature <= 0 {
		c.temperature = DefaultTemperature
	}
	return c
}

// Model returns the embedding model name.
func (c *Client) Model() string {
	return string(c.embeddingModel)
}

// EmbedBatch returns one vector per text in input order. Blank texts are
// rejected; callers substitute zero vectors before reaching the API.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: input %d", ErrEmptyText, i)
		}
	}

	defer metrics.ObserveDependency("openai_embeddings", time.Now())
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      c.embeddingModel,
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, fmt.Errorf("embedding index %d out of range or repeated", d.Index)
		}
		if len(d.Embedding) != c.dimensions {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(d.Embedding))
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Name identifies the generation backend in logs and health output.
func (c *Client) Name() string {
	return "openai/" + c.chatModel
}

// Generate returns a chat completion for prompt under the given system framing.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	defer metrics.ObserveDependency("openai_chat", time.Now())
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
