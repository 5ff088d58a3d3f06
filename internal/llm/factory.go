// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/pdiddy/litreview/pkg/types"
)

// NewClient builds the collaborators for the configured provider and wraps
// them in a shared token bucket.
func NewClient(ctx context.Context, cfg types.LLMConfig) (*Client, error) {
	provider := types.LLMProvider(strings.ToLower(string(cfg.Provider)))
	if provider == "" {
		provider = types.ProviderGemini
	}

	var c *Client
	switch provider {
	case types.ProviderGemini:
		g, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.EmbeddingModel)
		if err != nil {
			return nil, err
		}
		c = &Client{Provider: provider, Generator: g, Uploader: g, Embedder: g, closer: g.Close}
	case types.ProviderClaude:
		c = &Client{Provider: provider, Generator: NewClaudeClient(cfg.APIKey, cfg.Model, cfg.BaseURL)}
	case types.ProviderOpenAI:
		o := NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.EmbeddingModel, cfg.BaseURL)
		c = &Client{Provider: provider, Generator: o, Embedder: o}
	default:
		return nil, eris.Errorf("unsupported llm provider: %s", cfg.Provider)
	}

	return Pace(c, NewLimiter(cfg.RequestsPerSecond, cfg.Burst)), nil
}

// NewLimiter returns the token bucket shared by all collaborator calls.
// Non-positive values fall back to one call per second.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
