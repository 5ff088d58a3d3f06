// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package criteria asks the generative model for search criteria: terms a
// relevant paper should and should not match, and a few arXiv queries that
// cover the topic from different angles.
package criteria

import (
	"bytes"
	"context"
	"strings"
	"text/template"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/litreview/internal/llm"
	"github.com/pdiddy/litreview/internal/structured"
)

// MaxQueries caps the number of generated queries.
const MaxQueries = 3

// Criteria is the generated search plan for a topic.
type Criteria struct {
	Include []string `json:"include"`
	Exclude []string `json:"exclude"`
	Queries []string `json:"queries"`
}

// Empty reports whether nothing usable was generated.
func (c Criteria) Empty() bool {
	return len(c.Include) == 0 && len(c.Exclude) == 0 && len(c.Queries) == 0
}

var promptTmpl = template.Must(template.New("criteria").Parse(`You are a research librarian preparing a literature search on arXiv.

Topic: "{{.Topic}}"

Propose:
- include: up to 5 short terms that a relevant paper is likely to mention
- exclude: up to 3 short terms that mark papers outside the topic
- queries: up to {{.MaxQueries}} arXiv search queries using the ti: and abs: field prefixes with AND, OR and ANDNOT, each covering a different angle of the topic

Respond with a JSON object with the fields "include", "exclude" and "queries", each an array of strings. Do not include any text outside the JSON object.
`))

// Generator proposes criteria with a generative model.
type Generator struct {
	Gen        llm.Generator
	Model      string
	MaxRetries int
}

// Generate returns the criteria for topic. Any failure yields empty criteria
// and the error, so callers can fall back to a deterministic query.
func (g *Generator) Generate(ctx context.Context, topic string) (Criteria, error) {
	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, struct {
		Topic      string
		MaxQueries int
	}{topic, MaxQueries}); err != nil {
		return Criteria{}, eris.Wrap(err, "rendering criteria prompt")
	}
	prompt := buf.String()

	out, err := llm.Retry(ctx, g.MaxRetries, func(ctx context.Context) (string, error) {
		return g.Gen.Generate(ctx, g.Model, llm.Text(prompt))
	})
	if err != nil {
		return Criteria{}, eris.Wrap(err, "generating search criteria")
	}

	var c Criteria
	if err := structured.Decode(out, &c); err != nil {
		return Criteria{}, err
	}
	c = c.normalize()
	zap.L().Debug("search criteria",
		zap.Strings("include", c.Include),
		zap.Strings("exclude", c.Exclude),
		zap.Strings("queries", c.Queries),
	)
	return c, nil
}

// normalize trims every term, drops blanks and duplicates, and caps the
// query list at MaxQueries.
func (c Criteria) normalize() Criteria {
	out := Criteria{
		Include: clean(c.Include),
		Exclude: clean(c.Exclude),
		Queries: clean(c.Queries),
	}
	if len(out.Queries) > MaxQueries {
		out.Queries = out.Queries[:MaxQueries]
	}
	return out
}

func clean(terms []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range terms {
		t = strings.TrimSpace(t)
		k := strings.ToLower(t)
		if t == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}
