package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
	"github.com/DeividasMat/deal-website-sub000/internal/llm"
	"github.com/DeividasMat/deal-website-sub000/internal/payloadschema"
)

// Adjudicator asks an external judge whether two articles report the same
// underlying event.
type Adjudicator interface {
	Adjudicate(ctx context.Context, a, b deal.Article) (payloadschema.Verdict, error)
}

const adjudicationSystemPrompt = `You compare two financial news items and decide whether they report the same underlying transaction.
Same transaction means the same parties, the same instrument and the same announcement, even if worded differently.
Respond with JSON only:
{"isDuplicate": true|false, "similarity": 0.0-1.0, "confidence": "low"|"medium"|"high", "reason": "one sentence"}`

const (
	defaultAdjudicationTimeout = 45 * time.Second
	adjudicationTokens         = 300
)

// LLMAdjudicator implements Adjudicator on a language model with a fixed
// spacing between calls.
type LLMAdjudicator struct {
	client  llm.Client
	limiter *rate.Limiter
	timeout time.Duration
}

func NewLLMAdjudicator(client llm.Client, interval, timeout time.Duration) *LLMAdjudicator {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if timeout <= 0 {
		timeout = defaultAdjudicationTimeout
	}
	return &LLMAdjudicator{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		timeout: timeout,
	}
}

func (j *LLMAdjudicator) Adjudicate(ctx context.Context, a, b deal.Article) (payloadschema.Verdict, error) {
	if err := j.limiter.Wait(ctx); err != nil {
		return payloadschema.Verdict{}, err
	}
	callCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	raw, err := j.client.Complete(callCtx, llm.Request{
		System:      adjudicationSystemPrompt,
		Prompt:      adjudicationPrompt(a, b),
		MaxTokens:   adjudicationTokens,
		Temperature: 0,
	})
	if err != nil {
		return payloadschema.Verdict{}, fmt.Errorf("adjudication call: %w", err)
	}
	verdict, err := payloadschema.ValidateVerdict([]byte(llm.CleanJSON(raw)))
	if err != nil {
		return payloadschema.Verdict{}, fmt.Errorf("decode verdict: %w", err)
	}
	return *verdict, nil
}

func adjudicationPrompt(a, b deal.Article) string {
	var sb strings.Builder
	writeItem := func(label string, x deal.Article) {
		fmt.Fprintf(&sb, "%s\nTitle: %s\nSummary: %s\n", label, x.Title, x.Summary)
		if x.SourceName != "" || x.SourceURL != "" {
			fmt.Fprintf(&sb, "Source: %s %s\n", x.SourceName, x.SourceURL)
		}
		if !x.Date.IsZero() {
			fmt.Fprintf(&sb, "Date: %s\n", x.Date.Format(time.DateOnly))
		}
	}
	writeItem("Item A", a)
	sb.WriteString("\n")
	writeItem("Item B", b)
	return sb.String()
}
