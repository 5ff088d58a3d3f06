// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package draft

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litreview/internal/knowledge"
	"github.com/pdiddy/litreview/internal/llm"
	"github.com/pdiddy/litreview/pkg/types"
)

func TestMain(m *testing.M) {
	restore := llm.SetBackoffBase(time.Millisecond)
	code := m.Run()
	restore()
	os.Exit(code)
}

type replyGenerator struct {
	mu      sync.Mutex
	reply   func(prompt string) (string, error)
	prompts []string
}

func (g *replyGenerator) Generate(_ context.Context, _ string, parts ...llm.Part) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, parts[0].Text)
	g.mu.Unlock()
	return g.reply(parts[0].Text)
}

func fixed(s string) func(string) (string, error) {
	return func(string) (string, error) { return s, nil }
}

// orderBackend scores earlier documents higher.
type orderBackend struct{ n int }

func (b *orderBackend) Add(_ context.Context, docs []knowledge.Doc) error {
	b.n += len(docs)
	return nil
}

func (b *orderBackend) Score(context.Context, string) (map[int]float64, error) {
	s := make(map[int]float64, b.n)
	for k := 0; k < b.n; k++ {
		s[k] = float64(b.n - k)
	}
	return s, nil
}

func (b *orderBackend) Close() error { return nil }

func relevant(id, author string, year int, title, content string) *types.Paper {
	p := &types.Paper{
		ID:        id,
		Title:     title,
		Authors:   []string{author},
		Published: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	p.Classify(true, "", "")
	p.SetRelevantContent(content)
	return p
}

func buildIndex(t *testing.T, papers ...*types.Paper) *knowledge.Index {
	t.Helper()
	idx, err := knowledge.Build(context.Background(), papers, &orderBackend{})
	require.NoError(t, err)
	return idx
}

func corpus() []*types.Paper {
	return []*types.Paper{
		relevant("1", "Justin Gilmer", 2017, "Neural Message Passing for Quantum Chemistry", "MPNNs predict molecular properties."),
		relevant("2", "Thomas Kipf", 2017, "Semi-Supervised Classification with Graph Convolutional Networks", strings.Repeat("k", 5000)),
		relevant("3", "Petar Velickovic", 2018, "Graph Attention Networks", "Attention over neighbors."),
	}
}

var question = &types.OutlineNode{Title: "Foundations", Question: "What are graph neural networks?"}

func TestSynthesizeKeepsKnownCitations(t *testing.T) {
	gen := &replyGenerator{reply: fixed("GNNs pass messages [Gilmer2017Neural]. Convolutions help [Kipf2017SemiSupervised; Fake2020Thing]. Bogus [Nobody1999Else].")}
	s := &Synthesizer{Gen: gen}
	idx := buildIndex(t, corpus()...)

	text, cites, err := s.Synthesize(context.Background(), question, "graph neural networks", idx, 2)

	require.NoError(t, err)
	assert.Equal(t, "GNNs pass messages [Gilmer2017Neural]. Convolutions help [Kipf2017SemiSupervised]. Bogus.", text)
	require.Len(t, cites, 2)
	assert.Equal(t, "Gilmer2017Neural", cites[0].Key)
	assert.Equal(t, "1", cites[0].PaperID)
	assert.True(t, strings.HasPrefix(cites[0].BibTeX, "@article{Gilmer2017Neural,"))
	assert.Equal(t, "Kipf2017SemiSupervised", cites[1].Key)

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "[Gilmer2017Neural] Neural Message Passing for Quantum Chemistry\nAuthors: Justin Gilmer\n")
	assert.Contains(t, prompt, strings.Repeat("k", 4000)+"...")
	assert.NotContains(t, prompt, strings.Repeat("k", 4001))
	assert.NotContains(t, prompt, "Graph Attention Networks")
	assert.Contains(t, prompt, "Question this section answers: What are graph neural networks?")
}

func TestSynthesizeAttachesAllEvidenceWhenNothingCited(t *testing.T) {
	gen := &replyGenerator{reply: fixed("An uncited overview.")}
	idx := buildIndex(t, corpus()...)

	text, cites, err := (&Synthesizer{Gen: gen}).Synthesize(context.Background(), question, "t", idx, 3)

	require.NoError(t, err)
	assert.Equal(t, "An uncited overview.", text)
	require.Len(t, cites, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{cites[0].PaperID, cites[1].PaperID, cites[2].PaperID})
}

func TestSynthesizeSkipsWithoutCalling(t *testing.T) {
	tests := []struct {
		name string
		node *types.OutlineNode
		idx  func(t *testing.T) *knowledge.Index
	}{
		{"grouping node", &types.OutlineNode{Title: "Group"}, func(t *testing.T) *knowledge.Index { return buildIndex(t, corpus()...) }},
		{"empty index", question, func(t *testing.T) *knowledge.Index { return buildIndex(t) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &replyGenerator{reply: fixed("x")}
			text, cites, err := (&Synthesizer{Gen: gen}).Synthesize(context.Background(), tt.node, "t", tt.idx(t), 3)
			require.NoError(t, err)
			assert.Empty(t, text)
			assert.Empty(t, cites)
			assert.Empty(t, gen.prompts)
		})
	}
}

func TestSynthesizeFailure(t *testing.T) {
	gen := &replyGenerator{reply: func(string) (string, error) { return "", errors.New("quota") }}
	idx := buildIndex(t, corpus()...)

	_, _, err := (&Synthesizer{Gen: gen, MaxRetries: 1}).Synthesize(context.Background(), question, "t", idx, 3)

	assert.ErrorContains(t, err, "quota")
	assert.Len(t, gen.prompts, 2)
}

func TestSynthesizeTree(t *testing.T) {
	root := &types.OutlineNode{Title: "Review", Children: []*types.OutlineNode{
		{Title: "Intro", Question: "What is it?"},
		{Title: "Group", Children: []*types.OutlineNode{
			{Title: "Broken", Question: "fail please"},
			{Title: "Deep", Question: "d?", Children: []*types.OutlineNode{{Title: "Too deep", Question: "x?"}}},
		}},
	}}
	gen := &replyGenerator{reply: func(prompt string) (string, error) {
		if strings.Contains(prompt, "fail please") {
			return "", errors.New("boom")
		}
		return "Text [Gilmer2017Neural].", nil
	}}
	s := &Synthesizer{Gen: gen, MaxDepth: 3, Concurrency: 2}
	idx := buildIndex(t, corpus()...)

	var buf bytes.Buffer
	sum, err := s.SynthesizeTree(context.Background(), root, "t", idx, 2, &buf)

	require.NoError(t, err)
	assert.Equal(t, Summary{Written: 2, Failed: 1}, sum)
	assert.Equal(t, "Text [Gilmer2017Neural].", root.Children[0].Text)
	assert.Empty(t, root.Children[1].Text)
	assert.Empty(t, root.Children[1].Children[0].Text)
	assert.Equal(t, "Text [Gilmer2017Neural].", root.Children[1].Children[1].Text)
	assert.Empty(t, root.Children[1].Children[1].Children[0].Text)
	assert.Contains(t, buf.String(), "synthesized: Intro (1 citations)")
}

func TestSynthesizeTreeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	root := &types.OutlineNode{Title: "R", Question: "q?"}

	_, err := (&Synthesizer{Gen: &replyGenerator{reply: fixed("x")}}).SynthesizeTree(ctx, root, "t", buildIndex(t, corpus()...), 2, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, root.Text)
}

func TestCitationKeysCollisions(t *testing.T) {
	papers := []*types.Paper{
		relevant("1", "Ann Smith", 2020, "Graphs Everywhere", "x"),
		relevant("2", "Bob Jones", 2021, "Other Work", "x"),
		relevant("3", "Cat Smith", 2020, "Graphs Everywhere Again", "x"),
	}

	keys := CitationKeys(papers)

	assert.Equal(t, map[string]string{"1": "Smith2020Graphsa", "2": "Jones2021Other", "3": "Smith2020Graphsb"}, keys)
	c := Cite(papers[2], keys["3"])
	assert.True(t, strings.HasPrefix(c.BibTeX, "@article{Smith2020Graphsb,"))
}

func TestSuffix(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{{0, "a"}, {1, "b"}, {25, "z"}, {26, "aa"}, {27, "ab"}}
	for _, tt := range tests {
		if got := suffix(tt.n); got != tt.want {
			t.Errorf("suffix(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestValidateCitations(t *testing.T) {
	known := map[string]bool{"Vaswani2017Attention": true, "Brown2020Language": true}
	tests := []struct {
		name      string
		text      string
		want      string
		wantCited []string
	}{
		{"known kept", "Results [Vaswani2017Attention] hold.", "Results [Vaswani2017Attention] hold.", []string{"Vaswani2017Attention"}},
		{"unknown stripped", "Results [Tay2022Efficient] hold.", "Results hold.", nil},
		{"mixed group", "See [Tay2022Efficient, Brown2020Language; Vaswani2017Attention].", "See [Brown2020Language; Vaswani2017Attention].", []string{"Brown2020Language", "Vaswani2017Attention"}},
		{"first-cited order", "[Brown2020Language] then [Vaswani2017Attention] and [Brown2020Language]", "[Brown2020Language] then [Vaswani2017Attention] and [Brown2020Language]", []string{"Brown2020Language", "Vaswani2017Attention"}},
		{"markdown link untouched", "[click here](http://example.com)", "[click here](http://example.com)", nil},
		{"index untouched", "array [0] and map[key]", "array [0] and map[key]", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, cited := validateCitations(tt.text, known)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCited, cited)
		})
	}
}

func TestIsCitationKey(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"Vaswani2017", true},
		{"Smith-Jones2019", true},
		{"click here", false},
		{"http://example.com", false},
		{"", false},
		{"123", false},
		{"abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := isCitationKey(tt.input); got != tt.want {
				t.Errorf("isCitationKey(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
