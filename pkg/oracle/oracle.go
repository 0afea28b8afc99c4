// Package oracle provides text-completion clients used as the semantic matcher's oracle.
package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ramsey-B/fern/pkg/metrics"
)

// Oracle completes a prompt with a single text response.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures an oracle provider
type Config struct {
	Provider  string // openai, claude, gemini; empty disables the oracle
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// New returns the configured provider wrapped with request metrics, or nil when
// no provider is configured.
func New(ctx context.Context, cfg Config) (Oracle, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))

	var (
		client Oracle
		err    error
	)
	switch provider {
	case "":
		return nil, nil
	case "openai":
		client = NewOpenAIClient(cfg)
	case "claude", "anthropic":
		provider = "claude"
		client = NewClaudeClient(cfg)
	case "gemini":
		client, err = NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported oracle provider: %s", cfg.Provider)
	}

	return &instrumented{provider: provider, next: client}, nil
}

type instrumented struct {
	provider string
	next     Oracle
}

func (o *instrumented) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	response, err := o.next.Complete(ctx, prompt)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordOracleRequest(o.provider, status, time.Since(start).Seconds())

	return response, err
}
