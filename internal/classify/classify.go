// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify decides whether each fetched paper belongs in the review.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/litreview/internal/llm"
	"github.com/pdiddy/litreview/internal/structured"
	"github.com/pdiddy/litreview/internal/workpool"
	"github.com/pdiddy/litreview/pkg/types"
)

// DefaultMaxChars bounds inline paper text.
const DefaultMaxChars = 100000

// Verdict is the outcome of classifying one paper. Err is set when the
// verdict is a fallback caused by a failure; the paper is still classified.
type Verdict struct {
	Relevant  bool
	Reasoning string
	Summary   string
	Err       error
}

// Classifier asks a generator whether a paper is relevant to a topic.
type Classifier struct {
	Gen        llm.Generator
	Model      string
	MaxChars   int
	MaxRetries int
}

// response is the JSON shape the model is asked for.
type response struct {
	Summary    string `json:"summary"`
	IsRelevant yesNo  `json:"is_relevant"`
	Reasoning  string `json:"reasoning"`
}

// yesNo accepts "yes"/"no" in any case, and JSON booleans.
type yesNo struct {
	set   bool
	value bool
}

func (y *yesNo) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*y = yesNo{set: true, value: b}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true":
		*y = yesNo{set: true, value: true}
	case "no", "false":
		*y = yesNo{set: true, value: false}
	default:
		return eris.Errorf("is_relevant must be yes or no, got %q", s)
	}
	return nil
}

// Classify records a verdict on p and returns it. It never leaves p
// unclassified: missing content, collaborator failures and unparsable
// output all yield a "no" verdict with the cause in Reasoning.
func (c *Classifier) Classify(ctx context.Context, p *types.Paper, topic types.Topic) Verdict {
	v := c.judge(ctx, p, topic)
	p.Classify(v.Relevant, v.Reasoning, v.Summary)
	return v
}

func (c *Classifier) judge(ctx context.Context, p *types.Paper, topic types.Topic) Verdict {
	useFile := p.File != nil && llm.AcceptsFiles(c.Gen)
	hasText := strings.TrimSpace(p.Text) != ""
	if !useFile && !hasText {
		return Verdict{Reasoning: "no readable content"}
	}

	out, err := c.generate(ctx, p, topic, useFile)
	if eris.Is(err, llm.ErrFilePartsUnsupported) && hasText {
		out, err = c.generate(ctx, p, topic, false)
	}
	if err != nil {
		return Verdict{
			Reasoning: fmt.Sprintf("classification failed: %v", err),
			Err:       eris.Wrapf(types.ErrClassification, "paper %s: %v", p.ID, err),
		}
	}

	var r response
	if err := structured.Decode(out, &r); err != nil {
		return Verdict{
			Reasoning: fmt.Sprintf("unparsable classifier output: %v", err),
			Err:       eris.Wrapf(types.ErrClassification, "paper %s: %v", p.ID, err),
		}
	}
	if !r.IsRelevant.set {
		return Verdict{
			Reasoning: "unparsable classifier output: is_relevant missing",
			Err:       eris.Wrapf(types.ErrClassification, "paper %s: is_relevant missing", p.ID),
		}
	}
	return Verdict{
		Relevant:  r.IsRelevant.value,
		Reasoning: strings.TrimSpace(r.Reasoning),
		Summary:   strings.TrimSpace(r.Summary),
	}
}

func (c *Classifier) generate(ctx context.Context, p *types.Paper, topic types.Topic, useFile bool) (string, error) {
	maxChars := c.MaxChars
	if maxChars == 0 {
		maxChars = DefaultMaxChars
	}

	var parts []llm.Part
	content := ""
	if useFile {
		parts = append(parts, llm.File(*p.File))
	} else {
		content = truncate(p.Text, maxChars)
	}
	prompt, err := renderPrompt(topic, p.ID, content)
	if err != nil {
		return "", eris.Wrap(err, "rendering classifier prompt")
	}
	parts = append(parts, llm.Text(prompt))

	return llm.Retry(ctx, c.MaxRetries, func(ctx context.Context) (string, error) {
		return c.Gen.Generate(ctx, c.Model, parts...)
	})
}

// Summary counts the verdicts of a batch.
type Summary struct {
	Relevant    int
	NotRelevant int
	Failed      int
	Skipped     int
}

// Total returns the number of papers seen.
func (s Summary) Total() int {
	return s.Relevant + s.NotRelevant + s.Failed + s.Skipped
}

// ClassifyAll classifies every unclassified paper on a bounded worker pool.
// Papers that already carry a verdict are skipped. Only cancellation is
// returned as an error.
func ClassifyAll(ctx context.Context, c *Classifier, papers []*types.Paper, topic types.Topic, limit int, w io.Writer) (Summary, error) {
	w = workpool.Locked(w)
	type result struct {
		skipped bool
		v       Verdict
	}
	results, err := workpool.Map(ctx, papers, limit, func(ctx context.Context, _ int, p *types.Paper) result {
		if p.Relevance != types.RelevanceUnknown {
			return result{skipped: true}
		}
		v := c.Classify(ctx, p, topic)
		if v.Err != nil {
			zap.L().Warn("classification fell back to no", zap.String("paper", p.ID), zap.Error(v.Err))
		}
		fmt.Fprintf(w, "classified: %s (%s)\n", p.ID, p.Relevance)
		return result{v: v}
	})
	if err != nil {
		return Summary{}, err
	}

	var s Summary
	for _, r := range results {
		switch {
		case r.skipped:
			s.Skipped++
		case r.v.Err != nil:
			s.Failed++
		case r.v.Relevant:
			s.Relevant++
		default:
			s.NotRelevant++
		}
	}
	return s, nil
}

// Relevant returns the papers classified as relevant, in input order.
func Relevant(papers []*types.Paper) []*types.Paper {
	var out []*types.Paper
	for _, p := range papers {
		if p.Relevance == types.RelevanceYes {
			out = append(out, p)
		}
	}
	return out
}
