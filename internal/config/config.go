package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	LLMProviderOpenAI    = "openai"
	LLMProviderAnthropic = "anthropic"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"8"`

	RedisURL string        `envconfig:"REDIS_URL" default:""`
	LockTTL  time.Duration `envconfig:"LOCK_TTL" default:"2h"`

	LLMProvider     string        `envconfig:"LLM_PROVIDER" default:"openai"`
	LLMTimeout      time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`
	OpenAIAPIKey    string        `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL   string        `envconfig:"OPENAI_BASE_URL" default:""`
	OpenAIModel     string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	AnthropicAPIKey string        `envconfig:"ANTHROPIC_API_KEY" default:""`
	AnthropicModel  string        `envconfig:"ANTHROPIC_MODEL" default:"claude-haiku-4-5"`

	SearchAPIKey     string        `envconfig:"SEARCH_API_KEY" default:""`
	SearchBaseURL    string        `envconfig:"SEARCH_BASE_URL" default:"https://api.perplexity.ai"`
	SearchModel      string        `envconfig:"SEARCH_MODEL" default:"sonar"`
	SearchDelay      time.Duration `envconfig:"SEARCH_DELAY" default:"2s"`
	SearchMinContent int           `envconfig:"SEARCH_MIN_CONTENT" default:"200"`
	SearchCategories string        `envconfig:"SEARCH_CATEGORIES" default:""`

	ExtractDelay       time.Duration `envconfig:"EXTRACT_DELAY" default:"1s"`
	ExtractEnglishOnly bool          `envconfig:"EXTRACT_ENGLISH_ONLY" default:"true"`
	PersistGroupSize   int           `envconfig:"PERSIST_GROUP_SIZE" default:"3"`

	SweepWindowDays      int           `envconfig:"SWEEP_WINDOW_DAYS" default:"7"`
	SweepMaxSemantic     int           `envconfig:"SWEEP_MAX_SEMANTIC" default:"40"`
	AdjudicationInterval time.Duration `envconfig:"ADJUDICATION_INTERVAL" default:"1s"`
	DedupPolicyFile      string        `envconfig:"DEDUP_POLICY_FILE" default:""`

	HTTPHost           string `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	HTTPPort           int    `envconfig:"HTTP_PORT" default:"8090"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`

	IngestScheduleInterval time.Duration `envconfig:"INGEST_SCHEDULE_INTERVAL" default:"24h"`
	SweepScheduleInterval  time.Duration `envconfig:"SWEEP_SCHEDULE_INTERVAL" default:"6h"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	switch c.NormalizedLLMProvider() {
	case LLMProviderOpenAI, LLMProviderAnthropic:
	default:
		return fmt.Errorf("LLM_PROVIDER must be openai or anthropic")
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"LOCK_TTL", c.LockTTL},
		{"LLM_TIMEOUT", c.LLMTimeout},
		{"INGEST_SCHEDULE_INTERVAL", c.IngestScheduleInterval},
		{"SWEEP_SCHEDULE_INTERVAL", c.SweepScheduleInterval},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be > 0", d.name)
		}
	}
	if c.SearchDelay < 0 || c.ExtractDelay < 0 || c.AdjudicationInterval < 0 {
		return fmt.Errorf("SEARCH_DELAY, EXTRACT_DELAY and ADJUDICATION_INTERVAL must be >= 0")
	}
	if c.SearchMinContent < 0 {
		return fmt.Errorf("SEARCH_MIN_CONTENT must be >= 0")
	}
	if c.PersistGroupSize < 1 || c.PersistGroupSize > 16 {
		return fmt.Errorf("PERSIST_GROUP_SIZE must be between 1 and 16")
	}
	if c.SweepWindowDays < 1 {
		return fmt.Errorf("SWEEP_WINDOW_DAYS must be >= 1")
	}
	if c.SweepMaxSemantic < 0 {
		return fmt.Errorf("SWEEP_MAX_SEMANTIC must be >= 0")
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

// ValidateLLM checks credentials for commands that call the language model
// and search collaborators.
func (c *Config) ValidateLLM() error {
	switch c.NormalizedLLMProvider() {
	case LLMProviderOpenAI:
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	case LLMProviderAnthropic:
		if strings.TrimSpace(c.AnthropicAPIKey) == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
		}
	}
	if strings.TrimSpace(c.SearchAPIKey) == "" {
		return fmt.Errorf("SEARCH_API_KEY is required")
	}
	return nil
}

func (c *Config) NormalizedLLMProvider() string {
	return strings.ToLower(strings.TrimSpace(c.LLMProvider))
}

func (c *Config) SearchCategoryList() []string {
	return splitList(c.SearchCategories)
}

func (c *Config) CORSAllowedOriginsList() []string {
	return splitList(c.CORSAllowedOrigins)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
