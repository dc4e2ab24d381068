package llm

import (
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
)

// ProviderConfig selects and configures a chat/embedding backend.
type ProviderConfig struct {
	Provider   string // openai, openrouter, ollama, lmstudio, perplexity, anthropic
	BaseURL    string // optional override; providers carry sensible defaults
	Model      string
	EmbedModel string
	APIKey     string // when empty, looked up from the provider's env var
}

type chatFactory func(cfg ProviderConfig, logger *zap.Logger) (ChatProvider, error)

// defaultBaseURLs and apiKeyEnvVars define the known provider matrix.
// Everything except Anthropic is OpenAI wire compatible.
var defaultBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"perplexity": "https://api.perplexity.ai",
	"ollama":     "http://localhost:11434/v1",
	"lmstudio":   "http://localhost:1234/v1",
}

var apiKeyEnvVars = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"perplexity": "PERPLEXITY_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
}

var chatProviders = map[string]chatFactory{
	"openai":     newOpenAICompatible,
	"openrouter": newOpenAICompatible,
	"perplexity": newOpenAICompatible,
	"ollama":     newOpenAICompatible,
	"lmstudio":   newOpenAICompatible,
	"anthropic": func(cfg ProviderConfig, logger *zap.Logger) (ChatProvider, error) {
		return NewAnthropicProvider(resolveAPIKey(cfg), cfg.Model, logger)
	},
}

// NewChatProvider constructs a chat provider from the factory table.
func NewChatProvider(cfg ProviderConfig, logger *zap.Logger) (ChatProvider, error) {
	factory, ok := chatProviders[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider %q (known: %v)", cfg.Provider, knownProviders())
	}
	return factory(cfg, logger)
}

// NewEmbedder constructs an embedding client. Anthropic has no embedding
// endpoint, so embeddings always go through an OpenAI-compatible one.
func NewEmbedder(cfg ProviderConfig, logger *zap.Logger) (Embedder, error) {
	if cfg.Provider == "anthropic" {
		return nil, fmt.Errorf("provider %q has no embedding endpoint; configure an openai-compatible one", cfg.Provider)
	}
	return NewClient(&ClientConfig{
		Endpoint:   resolveBaseURL(cfg),
		EmbedModel: cfg.EmbedModel,
		Model:      cfg.Model,
		APIKey:     resolveAPIKey(cfg),
	}, logger)
}

func newOpenAICompatible(cfg ProviderConfig, logger *zap.Logger) (ChatProvider, error) {
	return NewClient(&ClientConfig{
		Endpoint:   resolveBaseURL(cfg),
		Model:      cfg.Model,
		EmbedModel: cfg.EmbedModel,
		APIKey:     resolveAPIKey(cfg),
	}, logger)
}

func resolveBaseURL(cfg ProviderConfig) string {
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	return defaultBaseURLs[cfg.Provider]
}

// resolveAPIKey prefers the caller-supplied key; the provider's environment
// variable is consulted only when none was given.
func resolveAPIKey(cfg ProviderConfig) string {
	if cfg.APIKey != "" {
		return cfg.APIKey
	}
	if env, ok := apiKeyEnvVars[cfg.Provider]; ok {
		return os.Getenv(env)
	}
	return ""
}

func knownProviders() []string {
	names := make([]string, 0, len(chatProviders))
	for name := range chatProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
