package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DeividasMat/deal-website-sub000/internal/llm"
)

// ErrUnavailable is returned by a Provider that could not produce results.
var ErrUnavailable = errors.New("search unavailable")

// Provider is the external search collaborator: a query in, free text out.
type Provider interface {
	Search(ctx context.Context, query, category string) (string, error)
}

const searchSystemPrompt = `You are a research assistant for a private credit deal tracker.
Answer with concrete, dated, attributable announcements only: lender or sponsor,
borrower, amount, deal type and the publisher with a source URL for every item.
Use one bullet per deal. If you cannot find any qualifying announcement, reply
with exactly: NO_RESULTS`

const noResultsMarker = "NO_RESULTS"

// ChatProvider answers search queries with a search-grounded chat model.
type ChatProvider struct {
	client llm.Client
}

func NewChatProvider(client llm.Client) *ChatProvider {
	return &ChatProvider{client: client}
}

func (p *ChatProvider) Search(ctx context.Context, query, category string) (string, error) {
	if p == nil || p.client == nil {
		return "", fmt.Errorf("search provider is not initialized")
	}

	prompt := query
	if category = strings.TrimSpace(category); category != "" {
		prompt = fmt.Sprintf("Category: %s\n\n%s", category, query)
	}
	text, err := p.client.Complete(ctx, llm.Request{
		System:    searchSystemPrompt,
		Prompt:    prompt,
		MaxTokens: 2048,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, noResultsMarker) {
		return "", ErrUnavailable
	}
	return text, nil
}
