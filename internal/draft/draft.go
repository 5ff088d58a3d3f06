// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package draft writes the prose of each outline section from evidence
// retrieved out of the knowledge index, and keeps its citations grounded in
// that evidence.
package draft

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/litreview/internal/knowledge"
	"github.com/pdiddy/litreview/internal/llm"
	"github.com/pdiddy/litreview/internal/workpool"
	"github.com/pdiddy/litreview/pkg/types"
)

// DefaultTopK is the evidence count used when a non-positive topK is given.
const DefaultTopK = 3

var errEmptySection = eris.New("empty section text")

// Synthesizer writes section text with a generator.
type Synthesizer struct {
	Gen         llm.Generator
	Model       string
	MaxRetries  int
	MaxDepth    int
	Concurrency int
}

// Synthesize answers node.Question from the topK papers the index returns
// for it. Grouping nodes and empty retrievals yield "" without calling the
// generator. Citations to keys outside the evidence are stripped; when the
// text cites nothing, every evidence paper is returned as a citation.
func (s *Synthesizer) Synthesize(ctx context.Context, node *types.OutlineNode, topic string, idx *knowledge.Index, topK int) (string, []types.Citation, error) {
	if node.Question == "" {
		return "", nil, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	papers, err := idx.Query(ctx, node.Question, topK)
	if err != nil {
		return "", nil, eris.Wrapf(err, "retrieving evidence for %q", node.Title)
	}
	if len(papers) == 0 {
		return "", nil, nil
	}

	keys := CitationKeys(idx.Papers())
	ev := make([]evidence, len(papers))
	byKey := make(map[string]*types.Paper, len(papers))
	known := make(map[string]bool, len(papers))
	for i, p := range papers {
		key := keys[p.ID]
		ev[i] = newEvidence(p, key)
		byKey[key] = p
		known[key] = true
	}

	prompt, err := renderPrompt(topic, node, ev)
	if err != nil {
		return "", nil, eris.Wrap(err, "rendering section prompt")
	}
	out, err := llm.Retry(ctx, s.MaxRetries, func(ctx context.Context) (string, error) {
		out, err := s.Gen.Generate(ctx, s.Model, llm.Text(prompt))
		if err != nil {
			return "", err
		}
		if out = strings.TrimSpace(out); out == "" {
			return "", errEmptySection
		}
		return out, nil
	})
	if err != nil {
		return "", nil, eris.Wrapf(err, "synthesizing %q", node.Title)
	}

	text, cited := validateCitations(out, known)
	if len(cited) == 0 {
		for _, e := range ev {
			cited = append(cited, e.Key)
		}
	}
	citations := make([]types.Citation, len(cited))
	for i, key := range cited {
		citations[i] = Cite(byKey[key], key)
	}
	return strings.TrimSpace(text), citations, nil
}

// Summary holds counts from a tree synthesis run.
type Summary struct {
	Written int
	Empty   int
	Failed  int
}

// Total returns the number of question nodes processed.
func (s Summary) Total() int {
	return s.Written + s.Empty + s.Failed
}

// SynthesizeTree fills Text and Citations of every question node within
// MaxDepth, running nodes on a bounded worker pool. A node that fails is
// left empty and logged. Only cancellation is returned as an error.
func (s *Synthesizer) SynthesizeTree(ctx context.Context, root *types.OutlineNode, topic string, idx *knowledge.Index, topK int, w io.Writer) (Summary, error) {
	w = workpool.Locked(w)
	nodes := root.QuestionNodes(s.MaxDepth)

	type outcome int
	const (
		written outcome = iota
		empty
		failed
	)
	outcomes, err := workpool.Map(ctx, nodes, s.Concurrency, func(ctx context.Context, _ int, n *types.OutlineNode) outcome {
		text, citations, err := s.Synthesize(ctx, n, topic, idx, topK)
		if err != nil {
			zap.L().Warn("section synthesis failed", zap.String("section", n.Title), zap.Error(err))
			fmt.Fprintf(w, "failed  %s\n", n.Title)
			return failed
		}
		if text == "" {
			fmt.Fprintf(w, "no evidence: %s\n", n.Title)
			return empty
		}
		n.Text, n.Citations = text, citations
		fmt.Fprintf(w, "synthesized: %s (%d citations)\n", n.Title, len(citations))
		return written
	})
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for _, o := range outcomes {
		switch o {
		case written:
			sum.Written++
		case empty:
			sum.Empty++
		case failed:
			sum.Failed++
		}
	}
	return sum, nil
}
