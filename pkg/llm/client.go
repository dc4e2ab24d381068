package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/apicrafter/metaclass/pkg/logging"
)

// Client talks to OpenAI-compatible endpoints for both chat and embeddings.
// Ollama, LM Studio, OpenRouter and Perplexity all speak this wire format,
// so one client covers every provider except Anthropic.
type Client struct {
	client     *openai.Client
	endpoint   string
	model      string
	embedModel string
	logger     *zap.Logger
}

// ClientConfig holds configuration for creating a client.
type ClientConfig struct {
	Endpoint   string // Base URL, e.g. "https://api.openai.com/v1"
	Model      string // Chat model name
	EmbedModel string // Embedding model name
	APIKey     string // Optional for local endpoints
}

// NewClient creates an OpenAI-compatible client.
func NewClient(cfg *ClientConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" && cfg.EmbedModel == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	logger.Debug("LLM client created",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("model", cfg.Model),
		zap.String("api_key", logging.RedactKey(cfg.APIKey)))

	return &Client{
		client:     openai.NewClientWithConfig(clientConfig),
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		embedModel: cfg.EmbedModel,
		logger:     logger.Named("llm"),
	}, nil
}

// Complete generates a chat completion for a classification prompt.
func (c *Client) Complete(ctx context.Context, system, prompt string, temperature float64, maxTokens int) (string, error) {
	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.Float64("temperature", temperature))

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
	})
	if err != nil {
		c.logger.Warn("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	c.logger.Debug("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}

// Embed generates embeddings for multiple inputs in one call.
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	model := c.embedModel
	if model == "" {
		model = "text-embedding-3-small"
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(model),
		Input: inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d inputs", len(resp.Data), len(inputs))
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}

// GetModel returns the configured chat model name.
func (c *Client) GetModel() string { return c.model }

// GetEndpoint returns the configured endpoint.
func (c *Client) GetEndpoint() string { return c.endpoint }
