// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

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

	"github.com/pdiddy/litreview/internal/llm"
	"github.com/pdiddy/litreview/pkg/types"
)

func TestMain(m *testing.M) {
	restore := llm.SetBackoffBase(time.Millisecond)
	code := m.Run()
	restore()
	os.Exit(code)
}

// mockGenerator returns replies in order, repeating the last one.
type mockGenerator struct {
	mu      sync.Mutex
	files   bool
	replies []string
	errs    []error
	calls   [][]llm.Part
}

func (g *mockGenerator) AcceptsFiles() bool { return g.files }

func (g *mockGenerator) Generate(_ context.Context, _ string, parts ...llm.Part) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := len(g.calls)
	g.calls = append(g.calls, parts)
	if n < len(g.errs) && g.errs[n] != nil {
		return "", g.errs[n]
	}
	if len(g.replies) == 0 {
		return "", nil
	}
	if n >= len(g.replies) {
		n = len(g.replies) - 1
	}
	return g.replies[n], nil
}

var topic = types.Topic{Name: "graph neural networks", Include: []string{"molecules"}}

func relevantPaper(id string) *types.Paper {
	p := &types.Paper{ID: id, Title: "Message Passing for Molecules"}
	p.Classify(true, "on topic", "")
	return p
}

func TestExtractPanicsUnlessRelevant(t *testing.T) {
	e := &Extractor{Gen: &mockGenerator{replies: []string{"x"}}}

	unclassified := &types.Paper{ID: "a", Text: "body"}
	assert.Panics(t, func() { e.Extract(context.Background(), unclassified, topic) })

	rejected := &types.Paper{ID: "b", Text: "body"}
	rejected.Classify(false, "", "")
	assert.Panics(t, func() { e.Extract(context.Background(), rejected, topic) })
}

func TestExtractFromFile(t *testing.T) {
	gen := &mockGenerator{files: true, replies: []string{"  GNNs predict molecular properties.\n"}}
	e := &Extractor{Gen: gen, Model: "m"}
	p := relevantPaper("2301.00001")
	p.AttachFile(types.FileRef{URI: "files/abc", MIMEType: "application/pdf"})

	content, ok := e.Extract(context.Background(), p, topic)

	require.True(t, ok)
	assert.Equal(t, "GNNs predict molecular properties.", content)
	require.Len(t, gen.calls, 1)
	require.Len(t, gen.calls[0], 2)
	require.NotNil(t, gen.calls[0][0].File)
	assert.Equal(t, "files/abc", gen.calls[0][0].File.URI)
	prompt := gen.calls[0][1].Text
	assert.Contains(t, prompt, `topic: "graph neural networks"`)
	assert.Contains(t, prompt, "attached as a file")
	assert.NotContains(t, prompt, "PAPER CONTENT")
}

func TestExtractFallsBackToText(t *testing.T) {
	gen := &mockGenerator{
		files:   true,
		errs:    []error{llm.ErrFilePartsUnsupported},
		replies: []string{"", "passage from text"},
	}
	e := &Extractor{Gen: gen}
	p := relevantPaper("p1")
	p.AttachFile(types.FileRef{URI: "files/abc"})
	p.Text = "Body text about molecules."

	content, ok := e.Extract(context.Background(), p, topic)

	require.True(t, ok)
	assert.Equal(t, "passage from text", content)
	require.Len(t, gen.calls, 2)
	assert.Contains(t, gen.calls[1][0].Text, "Body text about molecules.")
}

func TestExtractChunksLongText(t *testing.T) {
	gen := &mockGenerator{replies: []string{"first passage", noneMarker, "third passage"}}
	e := &Extractor{Gen: gen, ChunkChars: 30}
	p := relevantPaper("p1")
	p.Text = strings.Repeat("a", 20) + "\n\n" + strings.Repeat("b", 20) + "\n\n" + strings.Repeat("c", 20)

	content, ok := e.Extract(context.Background(), p, topic)

	require.True(t, ok)
	assert.Equal(t, "first passage\n\nthird passage", content)
	require.Len(t, gen.calls, 3)
	assert.Contains(t, gen.calls[0][0].Text, "part 1 of 3")
	assert.Contains(t, gen.calls[2][0].Text, "part 3 of 3")
}

func TestExtractFailures(t *testing.T) {
	tests := []struct {
		name      string
		gen       *mockGenerator
		text      string
		wantCalls int
	}{
		{"empty output exhausts retries", &mockGenerator{replies: []string{"   "}}, "body", 3},
		{"collaborator error exhausts retries", &mockGenerator{errs: []error{errors.New("boom"), errors.New("boom"), errors.New("boom")}}, "body", 3},
		{"nothing germane", &mockGenerator{replies: []string{noneMarker}}, "body", 1},
		{"no content", &mockGenerator{replies: []string{"x"}}, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Extractor{Gen: tt.gen, MaxRetries: 2}
			p := relevantPaper("p1")
			p.Text = tt.text

			content, ok := e.Extract(context.Background(), p, topic)

			assert.False(t, ok)
			assert.Empty(t, content)
			assert.Len(t, tt.gen.calls, tt.wantCalls)
		})
	}
}

func TestExtractRecoversAfterEmptyReply(t *testing.T) {
	gen := &mockGenerator{replies: []string{"", "recovered"}}
	e := &Extractor{Gen: gen, MaxRetries: 2}
	p := relevantPaper("p1")
	p.Text = "body"

	content, ok := e.Extract(context.Background(), p, topic)

	require.True(t, ok)
	assert.Equal(t, "recovered", content)
	assert.Len(t, gen.calls, 2)
}

func TestChunkText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"fits", "short", 10, []string{"short"}},
		{"packs paragraphs", "aa\n\nbb\n\ncc", 8, []string{"aa\n\nbb\n\n", "cc"}},
		{"splits long paragraph", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"rune boundary", "ééé", 3, []string{"é", "é", "é"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chunkText(tt.text, tt.limit)
			if strings.Join(got, "") != tt.text {
				t.Errorf("chunks do not reassemble: %q", got)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractAll(t *testing.T) {
	gen := &mockGenerator{replies: []string{"evidence"}}
	e := &Extractor{Gen: gen, MaxRetries: 0}

	ok := relevantPaper("ok")
	ok.Text = "body"
	done := relevantPaper("done")
	done.SetRelevantContent("cached")
	empty := relevantPaper("empty")
	rejected := &types.Paper{ID: "rejected", Text: "body"}
	rejected.Classify(false, "", "")
	unclassified := &types.Paper{ID: "unclassified", Text: "body"}

	var buf bytes.Buffer
	s, err := ExtractAll(context.Background(), e, []*types.Paper{ok, done, empty, rejected, unclassified}, topic, 2, &buf)

	require.NoError(t, err)
	assert.Equal(t, BatchSummary{Extracted: 1, Skipped: 1, Failed: 1}, s)
	assert.Equal(t, 3, s.Total())
	assert.True(t, s.HasFailures())
	assert.Equal(t, "evidence", ok.RelevantContent)
	assert.Equal(t, "cached", done.RelevantContent)
	assert.Empty(t, empty.RelevantContent)
	assert.Empty(t, rejected.RelevantContent)
	assert.Len(t, gen.calls, 1)
	assert.Contains(t, buf.String(), "extracted ok (8 chars)")
}

func TestExtractAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := relevantPaper("p1")
	p.Text = "body"

	_, err := ExtractAll(ctx, &Extractor{Gen: &mockGenerator{replies: []string{"x"}}}, []*types.Paper{p}, topic, 1, nil)

	assert.ErrorIs(t, err, context.Canceled)
}
