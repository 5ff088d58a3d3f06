// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract pulls the topic-relevant content out of papers classified
// as relevant. The content feeds the retrieval index.
package extract

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/litreview/internal/llm"
	"github.com/pdiddy/litreview/internal/workpool"
	"github.com/pdiddy/litreview/pkg/types"
)

const (
	// DefaultMaxRetries is used when Extractor.MaxRetries is negative.
	DefaultMaxRetries = 2

	// DefaultChunkChars bounds the inline text sent per call.
	DefaultChunkChars = 30000
)

var errEmptyOutput = eris.New("empty extraction output")

// Extractor asks a generator for the passages of a paper germane to a topic.
type Extractor struct {
	Gen        llm.Generator
	Model      string
	MaxRetries int
	ChunkChars int
}

// Extract returns the relevant content of p and whether extraction
// succeeded. It panics if p is not classified relevant. Each call is
// retried with exponential backoff; an empty reply counts as a failure.
func (e *Extractor) Extract(ctx context.Context, p *types.Paper, topic types.Topic) (string, bool) {
	if p.Relevance != types.RelevanceYes {
		panic(fmt.Sprintf("extract: paper %s has relevance %s", p.ID, p.Relevance))
	}
	content, err := e.extract(ctx, p, topic)
	if err != nil {
		zap.L().Warn("extraction failed",
			zap.String("paper", p.ID),
			zap.Error(eris.Wrapf(types.ErrExtraction, "paper %s: %v", p.ID, err)),
		)
		return "", false
	}
	return content, true
}

func (e *Extractor) extract(ctx context.Context, p *types.Paper, topic types.Topic) (string, error) {
	hasText := strings.TrimSpace(p.Text) != ""
	if p.File != nil && llm.AcceptsFiles(e.Gen) {
		prompt, err := renderPrompt(topic, p, "", 0, 0)
		if err != nil {
			return "", err
		}
		out, err := e.call(ctx, llm.File(*p.File), llm.Text(prompt))
		if !eris.Is(err, llm.ErrFilePartsUnsupported) || !hasText {
			return out, err
		}
	}
	if !hasText {
		return "", eris.New("no readable content")
	}

	limit := e.ChunkChars
	if limit <= 0 {
		limit = DefaultChunkChars
	}
	chunks := chunkText(p.Text, limit)
	var passages []string
	for i, chunk := range chunks {
		prompt, err := renderPrompt(topic, p, chunk, i+1, len(chunks))
		if err != nil {
			return "", err
		}
		out, err := e.call(ctx, llm.Text(prompt))
		if err != nil {
			return "", err
		}
		if out != noneMarker {
			passages = append(passages, out)
		}
	}
	if len(passages) == 0 {
		return "", errEmptyOutput
	}
	return strings.Join(passages, "\n\n"), nil
}

func (e *Extractor) call(ctx context.Context, parts ...llm.Part) (string, error) {
	retries := e.MaxRetries
	if retries < 0 {
		retries = DefaultMaxRetries
	}
	return llm.Retry(ctx, retries, func(ctx context.Context) (string, error) {
		out, err := e.Gen.Generate(ctx, e.Model, parts...)
		if err != nil {
			return "", err
		}
		out = strings.TrimSpace(out)
		if out == "" {
			return "", errEmptyOutput
		}
		return out, nil
	})
}

// chunkText splits text at paragraph boundaries into pieces of at most
// limit bytes. Paragraphs longer than limit are cut at rune boundaries.
func chunkText(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	flush := func() {
		if strings.TrimSpace(cur.String()) != "" {
			chunks = append(chunks, cur.String())
		}
		cur.Reset()
	}

	for _, para := range strings.SplitAfter(text, "\n\n") {
		for len(para) > limit {
			flush()
			cut := limit
			for cut > 0 && !utf8.RuneStart(para[cut]) {
				cut--
			}
			if cut == 0 {
				_, cut = utf8.DecodeRuneInString(para)
			}
			chunks = append(chunks, para[:cut])
			para = para[cut:]
		}
		if cur.Len()+len(para) > limit {
			flush()
		}
		cur.WriteString(para)
	}
	flush()
	return chunks
}

// BatchSummary holds counts from a batch extraction run.
type BatchSummary struct {
	Extracted int
	Skipped   int
	Failed    int
}

// Total returns the number of relevant papers processed.
func (s BatchSummary) Total() int {
	return s.Extracted + s.Skipped + s.Failed
}

// HasFailures reports whether any papers failed.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// ExtractAll extracts content for every relevant paper on a bounded worker
// pool and stores it with SetRelevantContent. Papers that are not relevant
// are ignored; papers that already have content are skipped. Only
// cancellation is returned as an error.
func ExtractAll(ctx context.Context, e *Extractor, papers []*types.Paper, topic types.Topic, limit int, w io.Writer) (BatchSummary, error) {
	w = workpool.Locked(w)
	var relevant []*types.Paper
	for _, p := range papers {
		if p.Relevance == types.RelevanceYes {
			relevant = append(relevant, p)
		}
	}

	type outcome int
	const (
		extracted outcome = iota
		skipped
		failed
	)
	outcomes, err := workpool.Map(ctx, relevant, limit, func(ctx context.Context, _ int, p *types.Paper) outcome {
		if p.RelevantContent != "" {
			fmt.Fprintf(w, "skipped %s\n", p.ID)
			return skipped
		}
		fmt.Fprintf(w, "extracting %s\n", p.ID)
		content, ok := e.Extract(ctx, p, topic)
		if !ok {
			fmt.Fprintf(w, "failed  %s\n", p.ID)
			return failed
		}
		p.SetRelevantContent(content)
		fmt.Fprintf(w, "extracted %s (%d chars)\n", p.ID, len(content))
		return extracted
	})
	if err != nil {
		return BatchSummary{}, err
	}

	var s BatchSummary
	for _, o := range outcomes {
		switch o {
		case extracted:
			s.Extracted++
		case skipped:
			s.Skipped++
		case failed:
			s.Failed++
		}
	}
	return s, nil
}
