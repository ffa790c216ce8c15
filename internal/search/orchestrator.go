// Package search runs the multi-query search pass for one target date.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
)

// ErrNoContent means every query for every category failed or came back
// too thin to use.
var ErrNoContent = errors.New("no search content")

const (
	defaultDelay            = 2 * time.Second
	defaultMinContentLength = 200
	defaultCallTimeout      = 60 * time.Second
)

type Options struct {
	// Delay is the fixed spacing between consecutive provider calls.
	Delay time.Duration
	// MinContentLength rejects responses whose trimmed text is not longer.
	MinContentLength int
	CallTimeout      time.Duration
	Categories       []string
}

// Stats counts what one Search call did.
type Stats struct {
	Queries   int
	Accepted  int
	Rejected  int
	Failed    int
	Fallbacks int
}

type Orchestrator struct {
	provider Provider
	logger   zerolog.Logger
	opts     Options
	limiter  *rate.Limiter
}

func NewOrchestrator(provider Provider, logger zerolog.Logger, opts Options) *Orchestrator {
	opts = normalizeOptions(opts)
	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}
	return &Orchestrator{
		provider: provider,
		logger:   logger.With().Str("component", "search").Logger(),
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

func normalizeOptions(opts Options) Options {
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.MinContentLength <= 0 {
		opts.MinContentLength = defaultMinContentLength
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if len(opts.Categories) == 0 {
		opts.Categories = append([]string(nil), deal.Categories...)
	}
	return opts
}

// Search queries every category sequentially and concatenates the accepted
// responses as "- <Category>: <text>" blocks. Individual query failures are
// logged and skipped; ErrNoContent is returned when nothing was accepted.
func (o *Orchestrator) Search(ctx context.Context, targetDate time.Time, categories []string) (string, error) {
	text, _, err := o.SearchWithStats(ctx, targetDate, categories)
	return text, err
}

func (o *Orchestrator) SearchWithStats(ctx context.Context, targetDate time.Time, categories []string) (string, Stats, error) {
	var stats Stats
	if o == nil || o.provider == nil {
		return "", stats, fmt.Errorf("search orchestrator is not initialized")
	}
	if len(categories) == 0 {
		categories = o.opts.Categories
	}

	var out strings.Builder
	for _, category := range categories {
		category = strings.TrimSpace(category)
		if category == "" {
			continue
		}

		accepted := 0
		for _, query := range Variants(category, targetDate) {
			text, ok := o.query(ctx, query, category, &stats)
			if !ok {
				continue
			}
			writeBlock(&out, category, text)
			accepted++
		}

		if accepted == 0 {
			stats.Fallbacks++
			if text, ok := o.query(ctx, BroadQuery(category, targetDate), category, &stats); ok {
				writeBlock(&out, category, text)
			}
		}
		if err := ctx.Err(); err != nil {
			return "", stats, err
		}
	}

	o.logger.Info().
		Str("target_date", targetDate.UTC().Format("2006-01-02")).
		Int("queries", stats.Queries).
		Int("accepted", stats.Accepted).
		Int("rejected", stats.Rejected).
		Int("failed", stats.Failed).
		Int("fallbacks", stats.Fallbacks).
		Msg("search pass finished")

	if stats.Accepted == 0 {
		return "", stats, ErrNoContent
	}
	return strings.TrimSpace(out.String()), stats, nil
}

func (o *Orchestrator) query(ctx context.Context, query, category string, stats *Stats) (string, bool) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", false
	}
	stats.Queries++

	callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()

	text, err := o.provider.Search(callCtx, query, category)
	if err != nil {
		stats.Failed++
		o.logger.Warn().Err(err).Str("category", category).Msg("search query failed")
		return "", false
	}
	text = strings.TrimSpace(text)
	if len(text) <= o.opts.MinContentLength {
		stats.Rejected++
		o.logger.Debug().Str("category", category).Int("length", len(text)).Msg("search response too short")
		return "", false
	}
	stats.Accepted++
	return text, true
}

func writeBlock(out *strings.Builder, category, text string) {
	if out.Len() > 0 {
		out.WriteString("\n\n")
	}
	out.WriteString("- ")
	out.WriteString(category)
	out.WriteString(": ")
	out.WriteString(text)
}
