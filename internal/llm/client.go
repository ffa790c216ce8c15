// Package llm wraps the language-model providers used for extraction,
// search and duplicate adjudication behind one small interface.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	defaultMaxTokens = 2048
	defaultTimeout   = 60 * time.Second
)

// ErrEmptyResponse is returned when a provider answers without content.
var ErrEmptyResponse = errors.New("empty model response")

// Request is a single-turn completion request.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Client is a language-model provider.
type Client interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Options configure provider clients.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func normalizeOptions(opts Options, defaultModel string) Options {
	opts.APIKey = strings.TrimSpace(opts.APIKey)
	opts.BaseURL = strings.TrimSpace(opts.BaseURL)
	opts.Model = strings.TrimSpace(opts.Model)
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return opts
}

func maxTokensOrDefault(n int) int64 {
	if n <= 0 {
		return defaultMaxTokens
	}
	return int64(n)
}
