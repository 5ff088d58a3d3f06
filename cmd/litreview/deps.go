// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"io"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/litreview/internal/config"
	"github.com/pdiddy/litreview/internal/llm"
	"github.com/pdiddy/litreview/internal/pipeline"
	"github.com/pdiddy/litreview/internal/search"
)

// newLLM validates the configuration and builds the model client.
func newLLM(ctx context.Context) (*llm.Client, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if cfg.LLM.APIKey == "" {
		return nil, eris.Errorf("no API key for provider %s: set it in .env, .secrets/ or llm.api_key", cfg.LLM.Provider)
	}
	return llm.NewClient(ctx, cfg.LLM)
}

// newSource returns the arXiv source, or a replay of a saved search when
// savedPath is set.
func newSource(savedPath string) (search.Source, error) {
	if savedPath == "" {
		return search.NewArxivSource(cfg.Search), nil
	}
	saved, err := search.ReadSavedSearch(savedPath)
	if err != nil {
		return nil, err
	}
	return &search.SavedSource{Saved: saved}, nil
}

// newPipeline wires a pipeline around client that reports progress to w.
func newPipeline(client *llm.Client, src search.Source, w io.Writer) *pipeline.Pipeline {
	return pipeline.New(cfg, pipeline.Deps{Source: src, LLM: client}, w)
}
