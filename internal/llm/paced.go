// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/pdiddy/litreview/pkg/types"
)

// Pace wraps every collaborator of c so each call first waits on limiter.
// All workers share the limiter, which enforces the minimum spacing between
// calls to the provider.
func Pace(c *Client, limiter *rate.Limiter) *Client {
	out := &Client{Provider: c.Provider, closer: c.closer}
	if c.Generator != nil {
		out.Generator = &pacedGenerator{next: c.Generator, limiter: limiter}
	}
	if c.Uploader != nil {
		out.Uploader = &pacedUploader{next: c.Uploader, limiter: limiter}
	}
	if c.Embedder != nil {
		out.Embedder = &pacedEmbedder{next: c.Embedder, limiter: limiter}
	}
	return out
}

type pacedGenerator struct {
	next    Generator
	limiter *rate.Limiter
}

func (p *pacedGenerator) Generate(ctx context.Context, model string, parts ...Part) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return p.next.Generate(ctx, model, parts...)
}

func (p *pacedGenerator) AcceptsFiles() bool { return AcceptsFiles(p.next) }

type pacedUploader struct {
	next    Uploader
	limiter *rate.Limiter
}

func (p *pacedUploader) Upload(ctx context.Context, path string) (types.FileRef, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return types.FileRef{}, err
	}
	return p.next.Upload(ctx, path)
}

type pacedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

func (p *pacedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.next.Embed(ctx, texts)
}
