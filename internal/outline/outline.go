// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package outline plans the section tree of a literature review from the
// bibliographic metadata of the relevant papers.
package outline

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/litreview/internal/llm"
	"github.com/pdiddy/litreview/internal/structured"
	"github.com/pdiddy/litreview/pkg/types"
)

const (
	// DefaultMaxSections caps top-level sections when none is configured.
	DefaultMaxSections = 5

	// snippetRunes is the abstract prefix shown per paper.
	snippetRunes = 300

	attempts = 2
)

var promptTmpl = template.Must(template.New("outline").Parse(`You are an expert academic researcher organizing a literature review.

Research topic: "{{.Topic}}"

Available sources:
{{range .Sources}}- {{.Title}} ({{.Author}}, {{.Year}}): {{.Snippet}}
{{end}}
Create a structured outline for a literature review addressing this topic, with at most {{.MaxSections}} main sections and at most {{.MaxDepth}} levels including the title.
Every node has a "title". A node that should carry its own text also has a "question" capturing what it covers. Subsections go in "sections". Do not include any other fields.

Respond with a JSON object only:
{"title": "Literature Review on ...", "sections": [{"title": "...", "question": "...", "sections": [{"title": "...", "question": "..."}]}]}
`))

type source struct {
	Title, Author, Snippet string
	Year                   string
}

// Planner asks a generator for an outline.
type Planner struct {
	Gen      llm.Generator
	Model    string
	MaxDepth int
}

// Plan returns an outline for topic. Only relevant papers are shown to the
// model; when there are none, every paper is. A malformed reply is retried
// once, after which a title-only outline is returned. Plan never returns nil.
func (pl *Planner) Plan(ctx context.Context, topic string, papers []*types.Paper, maxSections int) *types.OutlineNode {
	if maxSections <= 0 {
		maxSections = DefaultMaxSections
	}
	maxDepth := pl.MaxDepth
	if maxDepth <= 0 {
		maxDepth = types.DefaultMaxDepth
	}

	prompt, err := renderPrompt(topic, planningSet(papers), maxSections, maxDepth)
	if err != nil {
		zap.L().Warn("rendering outline prompt", zap.Error(err))
		return Fallback(topic)
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := pl.ask(ctx, prompt)
		if err == nil {
			return normalize(raw, maxSections, maxDepth)
		}
		zap.L().Warn("outline attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	return Fallback(topic)
}

// Fallback is the outline used when planning fails.
func Fallback(topic string) *types.OutlineNode {
	return &types.OutlineNode{Title: "Literature Review on " + topic}
}

func (pl *Planner) ask(ctx context.Context, prompt string) (*types.OutlineNode, error) {
	out, err := pl.Gen.Generate(ctx, pl.Model, llm.Text(prompt))
	if err != nil {
		return nil, eris.Wrap(err, "generating outline")
	}
	var raw types.OutlineNode
	if err := structured.Decode(out, &raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.Title) == "" {
		return nil, eris.Wrap(types.ErrStructuredOutput, "outline has no title")
	}
	return &raw, nil
}

func planningSet(papers []*types.Paper) []*types.Paper {
	var relevant []*types.Paper
	for _, p := range papers {
		if p.Relevance == types.RelevanceYes {
			relevant = append(relevant, p)
		}
	}
	if len(relevant) == 0 {
		return papers
	}
	return relevant
}

func renderPrompt(topic string, papers []*types.Paper, maxSections, maxDepth int) (string, error) {
	sources := make([]source, len(papers))
	for i, p := range papers {
		year := "n.d."
		if y := p.Year(); y > 0 {
			year = fmt.Sprint(y)
		}
		sources[i] = source{
			Title:   p.Title,
			Author:  p.LeadAuthor(),
			Year:    year,
			Snippet: snippet(p.Abstract),
		}
	}
	var buf bytes.Buffer
	err := promptTmpl.Execute(&buf, struct {
		Topic       string
		Sources     []source
		MaxSections int
		MaxDepth    int
	}{topic, sources, maxSections, maxDepth})
	return buf.String(), err
}

func snippet(abstract string) string {
	s := strings.Join(strings.Fields(abstract), " ")
	r := []rune(s)
	if len(r) <= snippetRunes {
		return s
	}
	return string(r[:snippetRunes]) + "..."
}

// normalize copies raw into a fresh tree with trimmed titles and questions.
// Untitled nodes are dropped with their subtrees, the root keeps at most
// maxSections children, and nothing deeper than maxDepth survives.
func normalize(raw *types.OutlineNode, maxSections, maxDepth int) *types.OutlineNode {
	root := &types.OutlineNode{
		Title:    strings.TrimSpace(raw.Title),
		Question: strings.TrimSpace(raw.Question),
	}

	type item struct {
		src, dst *types.OutlineNode
		depth    int
	}
	work := []item{{raw, root, 1}}
	for len(work) > 0 {
		it := work[0]
		work = work[1:]
		if it.depth >= maxDepth {
			continue
		}
		for _, c := range it.src.Children {
			if c == nil {
				continue
			}
			title := strings.TrimSpace(c.Title)
			if title == "" {
				continue
			}
			if it.depth == 1 && len(it.dst.Children) >= maxSections {
				break
			}
			n := &types.OutlineNode{Title: title, Question: strings.TrimSpace(c.Question)}
			it.dst.Children = append(it.dst.Children, n)
			work = append(work, item{c, n, it.depth + 1})
		}
	}
	return root
}
