// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm defines the generative model collaborators used by the review
// stages and implements them for Gemini, Claude and OpenAI.
package llm

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/litreview/pkg/types"
)

// ErrFilePartsUnsupported is returned by backends that cannot read file
// references. Callers fall back to inline text.
var ErrFilePartsUnsupported = eris.New("backend does not accept file parts")

// Part is one element of a prompt: either text or a reference to an
// uploaded file.
type Part struct {
	Text string
	File *types.FileRef
}

// Text returns a text part.
func Text(s string) Part { return Part{Text: s} }

// File returns a file reference part.
func File(ref types.FileRef) Part { return Part{File: &ref} }

// Generator produces text from an ordered prompt. An empty model selects the
// backend default.
type Generator interface {
	Generate(ctx context.Context, model string, parts ...Part) (string, error)
}

// Uploader hands a local file to the file ingest service.
type Uploader interface {
	Upload(ctx context.Context, path string) (types.FileRef, error)
}

// MaxEmbedBatch is the largest number of texts one Embed call may carry.
const MaxEmbedBatch = 100

// Embedder maps texts to vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// FileReader is implemented by generators that accept file parts.
type FileReader interface {
	AcceptsFiles() bool
}

// AcceptsFiles reports whether g can read file parts.
func AcceptsFiles(g Generator) bool {
	fr, ok := g.(FileReader)
	return ok && fr.AcceptsFiles()
}

// Client bundles the collaborators of one provider. Uploader and Embedder
// are nil when the provider has no such service.
type Client struct {
	Provider  types.LLMProvider
	Generator Generator
	Uploader  Uploader
	Embedder  Embedder
	closer    func() error
}

// Close releases provider resources.
func (c *Client) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}
	return c.closer()
}

// joinText concatenates the text parts and reports whether any file part
// was present.
func joinText(parts []Part) (string, bool) {
	var texts []string
	hasFile := false
	for _, p := range parts {
		if p.File != nil {
			hasFile = true
			continue
		}
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n\n"), hasFile
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// SetBackoffBase replaces the retry base delay and returns a function that
// restores the previous value. Used by tests in other packages.
func SetBackoffBase(d time.Duration) (restore func()) {
	prev := backoffBase
	backoffBase = d
	return func() { backoffBase = prev }
}

// Retry calls fn until it succeeds or maxRetries retries are spent, doubling
// the delay between attempts. ErrFilePartsUnsupported and context errors are
// returned immediately.
func Retry(ctx context.Context, maxRetries int, fn func(ctx context.Context) (string, error)) (string, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			zap.L().Debug("retrying model call",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if eris.Is(err, ErrFilePartsUnsupported) {
			return "", err
		}
		lastErr = err
	}
	return "", eris.Wrapf(lastErr, "after %d retries", maxRetries)
}
