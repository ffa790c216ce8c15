package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Environment:            "local",
		LogLevel:               "info",
		DatabaseURL:            "postgres://localhost/deals",
		DBMinConns:             1,
		DBMaxConns:             8,
		LockTTL:                2 * time.Hour,
		LLMProvider:            "openai",
		LLMTimeout:             time.Minute,
		SearchDelay:            2 * time.Second,
		SearchMinContent:       200,
		PersistGroupSize:       3,
		SweepWindowDays:        7,
		SweepMaxSemantic:       40,
		HTTPPort:               8090,
		IngestScheduleInterval: 24 * time.Hour,
		SweepScheduleInterval:  6 * time.Hour,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing database", func(c *Config) { c.DatabaseURL = " " }, "DATABASE_URL"},
		{"min above max", func(c *Config) { c.DBMinConns = 9 }, "cannot exceed"},
		{"unknown provider", func(c *Config) { c.LLMProvider = "llama" }, "LLM_PROVIDER"},
		{"group size", func(c *Config) { c.PersistGroupSize = 0 }, "PERSIST_GROUP_SIZE"},
		{"sweep window", func(c *Config) { c.SweepWindowDays = 0 }, "SWEEP_WINDOW_DAYS"},
		{"zero timeout", func(c *Config) { c.LLMTimeout = 0 }, "LLM_TIMEOUT"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error mentioning %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestValidateLLMRequiresProviderKey(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.SearchAPIKey = "pplx"
	if err := cfg.ValidateLLM(); err == nil {
		t.Fatalf("expected missing OPENAI_API_KEY error")
	}

	cfg.LLMProvider = " Anthropic "
	cfg.AnthropicAPIKey = "sk-ant"
	if err := cfg.ValidateLLM(); err != nil {
		t.Fatalf("expected anthropic config to validate, got %v", err)
	}
}

func TestSearchCategoryListDedupes(t *testing.T) {
	t.Parallel()

	cfg := Config{SearchCategories: "Credit Facility, Fund Raising,,Credit Facility"}
	got := cfg.SearchCategoryList()
	if len(got) != 2 || got[0] != "Credit Facility" || got[1] != "Fund Raising" {
		t.Fatalf("unexpected categories: %q", got)
	}
}
