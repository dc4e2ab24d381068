package llm

import (
	"context"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// AnthropicProvider implements ChatProvider over the Anthropic Messages API.
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// NewAnthropicProvider creates an Anthropic chat provider.
func NewAnthropicProvider(apiKey, model string, logger *zap.Logger) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(apiKey),
		model:  model,
		logger: logger.Named("anthropic"),
	}, nil
}

// Complete generates a completion for a classification prompt.
func (p *AnthropicProvider) Complete(ctx context.Context, system, prompt string, temperature float64, maxTokens int) (string, error) {
	temp := float32(temperature)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	resp, err := p.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(p.model),
		System:      system,
		MaxTokens:   maxTokens,
		Temperature: &temp,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		p.logger.Warn("anthropic request failed", zap.Error(err))
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	return resp.GetFirstContentText(), nil
}

var _ ChatProvider = (*AnthropicProvider)(nil)
