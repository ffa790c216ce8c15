// Package extract turns labeled search sections into candidate articles.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
	"github.com/DeividasMat/deal-website-sub000/internal/langdetect"
	"github.com/DeividasMat/deal-website-sub000/internal/llm"
	"github.com/DeividasMat/deal-website-sub000/internal/payloadschema"
)

// ErrNoArticles means a section yielded nothing usable, not even a
// fallback summary.
var ErrNoArticles = errors.New("no articles extracted")

const (
	defaultCallTimeout = 90 * time.Second
	extractionTokens   = 2048
	fallbackTokens     = 512
)

type Options struct {
	// Delay is the spacing between consecutive model calls.
	Delay       time.Duration
	CallTimeout time.Duration
	// Language drops candidates confidently detected as another language.
	// Empty disables the filter.
	Language string
}

type Extractor struct {
	client  llm.Client
	logger  zerolog.Logger
	opts    Options
	limiter *rate.Limiter
}

func New(client llm.Client, logger zerolog.Logger, opts Options) *Extractor {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}
	return &Extractor{
		client:  client,
		logger:  logger.With().Str("component", "extract").Logger(),
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Extract returns the deals described in section. A malformed or failed
// structured reply falls back to a single summary candidate, first from the
// model and then from the section text itself. A well-formed reply that
// lists no deals yields an empty slice and no error.
func (e *Extractor) Extract(ctx context.Context, section deal.Section) ([]deal.Candidate, error) {
	if strings.TrimSpace(section.Content) == "" {
		return nil, ErrNoArticles
	}

	candidates, err := e.extractStructured(ctx, section)
	if err == nil {
		return e.finish(candidates, section), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	e.logger.Warn().Err(err).Str("category", section.Category).Msg("structured extraction failed; using fallback")

	if candidate, ok := e.summaryFallback(ctx, section); ok {
		return []deal.Candidate{candidate}, nil
	}
	candidate := Minimal(section)
	if !usable(candidate) {
		return nil, fmt.Errorf("%w: %v", ErrNoArticles, err)
	}
	return []deal.Candidate{candidate}, nil
}

func (e *Extractor) extractStructured(ctx context.Context, section deal.Section) ([]deal.Candidate, error) {
	raw, err := e.complete(ctx, llm.Request{
		System:      extractionSystem(),
		Prompt:      extractionPrompt(section),
		MaxTokens:   extractionTokens,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, err
	}
	articles, err := payloadschema.ValidateExtraction([]byte(llm.CleanJSON(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode extraction: %w", err)
	}

	out := make([]deal.Candidate, 0, len(articles))
	for _, a := range articles {
		out = append(out, fromExtracted(a))
	}
	return out, nil
}

func (e *Extractor) summaryFallback(ctx context.Context, section deal.Section) (deal.Candidate, bool) {
	raw, err := e.complete(ctx, llm.Request{
		System:      fallbackSystemPrompt,
		Prompt:      section.Content,
		MaxTokens:   fallbackTokens,
		Temperature: 0.1,
	})
	if err != nil {
		e.logger.Debug().Err(err).Msg("fallback summary call failed")
		return deal.Candidate{}, false
	}
	articles, err := payloadschema.ValidateExtraction([]byte(llm.CleanJSON(raw)))
	if err != nil || len(articles) == 0 {
		return deal.Candidate{}, false
	}

	candidate := fromExtracted(articles[0])
	candidate.Fallback = true
	if !usable(candidate) {
		return deal.Candidate{}, false
	}
	return normalize(candidate, section), true
}

func (e *Extractor) complete(ctx context.Context, req llm.Request) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}
	callCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()
	return e.client.Complete(callCtx, req)
}

func (e *Extractor) finish(candidates []deal.Candidate, section deal.Section) []deal.Candidate {
	candidates = filterPlaceholders(candidates)
	candidates = MergeBatch(candidates)

	out := make([]deal.Candidate, 0, len(candidates))
	for _, c := range candidates {
		c = normalize(c, section)
		if !langdetect.IsLanguage(c.Title+". "+c.Summary, e.opts.Language) {
			e.logger.Debug().Str("title", c.Title).Msg("dropping non-matching language candidate")
			continue
		}
		out = append(out, c)
	}
	return out
}

func fromExtracted(a payloadschema.ExtractedArticle) deal.Candidate {
	return deal.Candidate{
		Title:      a.Title,
		Summary:    a.Summary,
		Category:   deref(a.Category),
		SourceURL:  deref(a.SourceURL),
		SourceName: deref(a.OriginalSource),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
