package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/apicrafter/metaclass/pkg/apperrors"
)

// Config holds all configuration for metaclass.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys, database passwords) must only come from environment variables.
type Config struct {
	// RulePathsStr is a comma-separated list of rule files or directories.
	RulePathsStr string `yaml:"rule_paths" env:"METACLASS_RULE_PATHS" env-default:"rules"`

	// RulePaths is the parsed list from RulePathsStr (not from config file).
	RulePaths []string `yaml:"-"`

	// Scan scoping
	ContextsStr  string `yaml:"contexts" env:"METACLASS_CONTEXTS" env-default:""`
	LangsStr     string `yaml:"langs" env:"METACLASS_LANGS" env-default:""`
	CountriesStr string `yaml:"countries" env:"METACLASS_COUNTRIES" env-default:""`

	Contexts  []string `yaml:"-"`
	Langs     []string `yaml:"-"`
	Countries []string `yaml:"-"`

	// Mode selects the classification pipeline: rules, hybrid or llm.
	Mode string `yaml:"mode" env:"METACLASS_MODE" env-default:"rules"`

	// Limit caps how many records are profiled per source.
	Limit int `yaml:"limit" env:"METACLASS_LIMIT" env-default:"1000"`

	// Confidence is the minimum match confidence reported, in percent.
	Confidence float64 `yaml:"confidence" env:"METACLASS_CONFIDENCE" env-default:"5"`

	// DictShareThreshold is the unique-share percentage below which a
	// column is tagged as a dictionary.
	DictShareThreshold float64 `yaml:"dict_share_threshold" env:"METACLASS_DICT_SHARE" env-default:"10"`

	// EnableDates turns on the date-pattern fallback for unmatched text columns.
	EnableDates bool `yaml:"enable_dates" env:"METACLASS_ENABLE_DATES" env-default:"true"`

	// IgnoreImprecise skips rules flagged as imprecise.
	IgnoreImprecise bool `yaml:"ignore_imprecise" env:"METACLASS_IGNORE_IMPRECISE" env-default:"false"`

	// StopOnMatch ends field-name matching at the first hit.
	StopOnMatch bool `yaml:"stop_on_match" env:"METACLASS_STOP_ON_MATCH" env-default:"false"`

	LLM      LLMConfig      `yaml:"llm"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// LLMConfig holds the retrieval-augmented classifier settings.
type LLMConfig struct {
	Provider   string `yaml:"provider" env:"METACLASS_LLM_PROVIDER" env-default:"openai"`
	BaseURL    string `yaml:"base_url" env:"METACLASS_LLM_BASE_URL" env-default:""`
	Model      string `yaml:"model" env:"METACLASS_LLM_MODEL" env-default:"gpt-4o-mini"`
	EmbedModel string `yaml:"embed_model" env:"METACLASS_LLM_EMBED_MODEL" env-default:"text-embedding-3-small"`

	// APIKey is a secret and must come from the environment. When empty,
	// the provider's own variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...)
	// is consulted at client construction.
	APIKey string `yaml:"-" env:"METACLASS_LLM_API_KEY"`

	// RegistryPath points at the JSONL datatype registry used for retrieval.
	RegistryPath string `yaml:"registry" env:"METACLASS_LLM_REGISTRY" env-default:""`

	TopK       int     `yaml:"top_k" env:"METACLASS_LLM_TOP_K" env-default:"10"`
	MaxRetries int     `yaml:"max_retries" env:"METACLASS_LLM_MAX_RETRIES" env-default:"3"`
	TimeoutSec int     `yaml:"timeout_sec" env:"METACLASS_LLM_TIMEOUT_SEC" env-default:"30"`
	MaxTokens  int     `yaml:"max_tokens" env:"METACLASS_LLM_MAX_TOKENS" env-default:"512"`

	// MinConfidence is the rule-match confidence below which hybrid mode
	// escalates a column to the LLM classifier, in percent.
	MinConfidence float64 `yaml:"min_confidence" env:"METACLASS_LLM_MIN_CONFIDENCE" env-default:"60"`
}

// Timeout returns the per-call LLM timeout.
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// PostgresConfig holds database scanning configuration.
type PostgresConfig struct {
	// DSN is a secret when it carries a password, so it only comes from
	// the environment.
	DSN string `yaml:"-" env:"METACLASS_PG_DSN"`

	QueryTimeoutSec int `yaml:"query_timeout_sec" env:"METACLASS_PG_QUERY_TIMEOUT_SEC" env-default:"30"`
}

// QueryTimeout returns the per-query timeout.
func (c *PostgresConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSec) * time.Second
}

// Load reads configuration from the given YAML file with environment
// variable overrides. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfiguration, err)
	}

	cfg.ParseListFields()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseListFields splits the comma-separated string fields into slices.
// Callers that mutate the string fields after Load must call it again.
func (c *Config) ParseListFields() {
	c.RulePaths = splitList(c.RulePathsStr)
	c.Contexts = splitList(c.ContextsStr)
	c.Langs = splitList(c.LangsStr)
	c.Countries = splitList(c.CountriesStr)
}

// Validate checks field values that cleanenv cannot express.
func (c *Config) Validate() error {
	switch c.Mode {
	case "rules", "hybrid", "llm":
	default:
		return fmt.Errorf("%w: unknown mode %q", apperrors.ErrConfiguration, c.Mode)
	}
	if c.Mode != "llm" && len(c.RulePaths) == 0 {
		return fmt.Errorf("%w: at least one rule path is required in %s mode", apperrors.ErrConfiguration, c.Mode)
	}
	if c.Mode != "rules" && c.LLM.RegistryPath == "" {
		return fmt.Errorf("%w: llm.registry is required in %s mode", apperrors.ErrConfiguration, c.Mode)
	}
	if c.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", apperrors.ErrConfiguration)
	}
	if c.Confidence < 0 || c.Confidence > 100 {
		return fmt.Errorf("%w: confidence must be between 0 and 100", apperrors.ErrConfiguration)
	}
	return nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
