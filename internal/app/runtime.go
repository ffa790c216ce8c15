package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/DeividasMat/deal-website-sub000/internal/config"
	"github.com/DeividasMat/deal-website-sub000/internal/db"
	"github.com/DeividasMat/deal-website-sub000/internal/dedup"
	"github.com/DeividasMat/deal-website-sub000/internal/extract"
	"github.com/DeividasMat/deal-website-sub000/internal/ingest"
	"github.com/DeividasMat/deal-website-sub000/internal/llm"
	"github.com/DeividasMat/deal-website-sub000/internal/lock"
	"github.com/DeividasMat/deal-website-sub000/internal/search"
)

const searchClientName = "search"

// runtime holds the wired ingestion stack shared by ingest, sweep and serve.
type runtime struct {
	pool        *db.Pool
	coordinator *ingest.Coordinator
	closers     []func() error
}

func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildRuntime(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*runtime, error) {
	if err := cfg.ValidateLLM(); err != nil {
		return nil, err
	}

	policy, err := loadPolicy(cfg.DedupPolicyFile)
	if err != nil {
		return nil, err
	}

	registry, err := newModelRegistry(cfg)
	if err != nil {
		return nil, err
	}
	client, err := registry.Default()
	if err != nil {
		return nil, fmt.Errorf("resolve language model: %w", err)
	}
	searchClient := llm.NewOpenAIClient(searchClientName, llm.Options{
		APIKey:  cfg.SearchAPIKey,
		BaseURL: cfg.SearchBaseURL,
		Model:   cfg.SearchModel,
		Timeout: cfg.LLMTimeout,
	})

	rt := &runtime{}
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	rt.pool = pool
	rt.closers = append(rt.closers, pool.Close)

	locker, err := newLocker(ctx, cfg, rt)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	extractOpts := extract.Options{Delay: cfg.ExtractDelay, CallTimeout: cfg.LLMTimeout}
	if cfg.ExtractEnglishOnly {
		extractOpts.Language = "en"
	}

	engine := dedup.NewEngine(policy, dedup.NewLLMAdjudicator(client, cfg.AdjudicationInterval, cfg.LLMTimeout), logger)
	rt.coordinator = ingest.NewCoordinator(ingest.Dependencies{
		Searcher: search.NewOrchestrator(search.NewChatProvider(searchClient), logger, search.Options{
			Delay:            cfg.SearchDelay,
			MinContentLength: cfg.SearchMinContent,
			CallTimeout:      cfg.LLMTimeout,
			Categories:       cfg.SearchCategoryList(),
		}),
		Extractor: extract.New(client, logger, extractOpts),
		Engine:    engine,
		Store:     pool,
		Runs:      pool,
		Locker:    locker,
	}, logger, ingest.Options{
		Categories:       cfg.SearchCategoryList(),
		PersistGroupSize: cfg.PersistGroupSize,
		LockTTL:          cfg.LockTTL,
		SweepWindowDays:  cfg.SweepWindowDays,
		SweepMaxSemantic: sweepSemanticBudget(cfg.SweepMaxSemantic),
	})

	logger.Info().
		Str("llm", client.Name()).
		Bool("distributed_lock", strings.TrimSpace(cfg.RedisURL) != "").
		Float64("lexical_duplicate", policy.LexicalDuplicate).
		Int("sweep_window_days", cfg.SweepWindowDays).
		Msg("ingestion stack ready")
	return rt, nil
}

func newModelRegistry(cfg *config.Config) (*llm.Registry, error) {
	registry := llm.NewRegistry(cfg.NormalizedLLMProvider())
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		if err := registry.Register(llm.NewOpenAIClient(llm.ProviderOpenAI, llm.Options{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.LLMTimeout,
		})); err != nil {
			return nil, fmt.Errorf("register openai client: %w", err)
		}
	}
	if strings.TrimSpace(cfg.AnthropicAPIKey) != "" {
		if err := registry.Register(llm.NewAnthropicClient(llm.Options{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.AnthropicModel,
			Timeout: cfg.LLMTimeout,
		})); err != nil {
			return nil, fmt.Errorf("register anthropic client: %w", err)
		}
	}
	return registry, nil
}

func newLocker(ctx context.Context, cfg *config.Config, rt *runtime) (lock.Locker, error) {
	rawURL := strings.TrimSpace(cfg.RedisURL)
	if rawURL == "" {
		return lock.NewLocal(), nil
	}
	client, err := lock.ConnectRedis(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	rt.closers = append(rt.closers, client.Close)
	return lock.NewRedis(client, ""), nil
}

func loadPolicy(path string) (dedup.Policy, error) {
	if strings.TrimSpace(path) == "" {
		return dedup.DefaultPolicy(), nil
	}
	policy, err := dedup.LoadPolicyFile(path)
	if err != nil {
		return dedup.Policy{}, fmt.Errorf("load dedup policy: %w", err)
	}
	return policy, nil
}

// sweepSemanticBudget maps SWEEP_MAX_SEMANTIC=0 to a disabled semantic stage.
func sweepSemanticBudget(configured int) int {
	if configured <= 0 {
		return -1
	}
	return configured
}
