package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apicrafter/metaclass/pkg/apperrors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"rules"}, cfg.RulePaths)
	assert.Equal(t, "rules", cfg.Mode)
	assert.Equal(t, 1000, cfg.Limit)
	assert.Equal(t, 5.0, cfg.Confidence)
	assert.Equal(t, 10.0, cfg.DictShareThreshold)
	assert.True(t, cfg.EnableDates)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout())
	assert.Equal(t, 30*time.Second, cfg.Postgres.QueryTimeout())
}

func TestLoad_FromYAML(t *testing.T) {
	path := writeConfig(t, `
rule_paths: "rules/common, rules/fin"
contexts: "common,finance"
langs: en
mode: hybrid
limit: 500
confidence: 10
llm:
  provider: anthropic
  model: claude-sonnet-4-20250514
  registry: registry.jsonl
  min_confidence: 75
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"rules/common", "rules/fin"}, cfg.RulePaths)
	assert.Equal(t, []string{"common", "finance"}, cfg.Contexts)
	assert.Equal(t, []string{"en"}, cfg.Langs)
	assert.Equal(t, "hybrid", cfg.Mode)
	assert.Equal(t, 500, cfg.Limit)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "registry.jsonl", cfg.LLM.RegistryPath)
	assert.Equal(t, 75.0, cfg.LLM.MinConfidence)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "mode: rules\nlimit: 500\n")
	t.Setenv("METACLASS_LIMIT", "25")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Limit)
}

func TestLoad_SecretsOnlyFromEnv(t *testing.T) {
	// API keys in YAML must be ignored, the env variable is authoritative.
	path := writeConfig(t, "llm:\n  api_key: from-yaml\n")
	t.Setenv("METACLASS_LLM_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LLM.APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Mode = "magic" },
			wantErr: "unknown mode",
		},
		{
			name: "rules mode needs rule paths",
			mutate: func(c *Config) {
				c.Mode = "rules"
				c.RulePaths = nil
			},
			wantErr: "rule path",
		},
		{
			name: "hybrid mode needs registry",
			mutate: func(c *Config) {
				c.Mode = "hybrid"
				c.LLM.RegistryPath = ""
			},
			wantErr: "registry",
		},
		{
			name:    "negative limit",
			mutate:  func(c *Config) { c.Limit = -1 },
			wantErr: "limit",
		},
		{
			name:    "confidence out of range",
			mutate:  func(c *Config) { c.Confidence = 150 },
			wantErr: "confidence",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_LLMModeSkipsRulePathRequirement(t *testing.T) {
	// An explicitly empty env value beats the default, unlike an empty
	// YAML string which cleanenv treats as unset.
	t.Setenv("METACLASS_RULE_PATHS", "")
	path := writeConfig(t, "mode: llm\nllm:\n  registry: registry.jsonl\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.RulePaths)
}
