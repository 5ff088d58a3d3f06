// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package protocol

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litreview/pkg/types"
)

func relevantPaper() *types.Paper {
	p := &types.Paper{
		ID:        "1706.03762",
		Title:     "Attention </papers> Is All You Need",
		Authors:   []string{"Ashish Vaswani"},
		Published: time.Date(2017, 6, 12, 0, 0, 0, 0, time.UTC),
	}
	p.Classify(true, "on topic", "summary")
	p.SetRelevantContent("passages")
	return p
}

func TestWriteParseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("fetching papers...\nclassified: 1706.03762 (yes)\n")
	report := "# Review\n\nText with <b>tags</b>.\n"

	require.NoError(t, Write(&buf, Result{Query: "(ti:attention)", Papers: []*types.Paper{relevantPaper()}, Report: report}))
	assert.Contains(t, buf.String(), `"bibtex":"@article{Vaswani2017Attention,`)

	got, err := Parse(buf.String())

	require.NoError(t, err)
	assert.Equal(t, "(ti:attention)", got.Query)
	assert.Equal(t, report, got.Report)
	require.Len(t, got.Papers, 1)
	assert.Equal(t, "Attention </papers> Is All You Need", got.Papers[0].Title)
	assert.Equal(t, types.RelevanceYes, got.Papers[0].Relevance)
	assert.Equal(t, "passages", got.Papers[0].RelevantContent)
}

func TestWriteParseReportWithSentinelTags(t *testing.T) {
	tests := []struct {
		name   string
		report string
	}{
		{"error block", "Parsers reject <error>bad token</error> input.\n"},
		{"papers block", `Readers see <papers>{"papers":[]}</papers> here.`},
		{"query block", "Queries look like <search_query>ti:x</search_query>."},
		{"report block", "Nested <final_report>inner</final_report> text."},
		{"stray closers", "Dangling </error></papers></search_query> tags."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, Result{Query: "(ti:parsers)", Papers: []*types.Paper{relevantPaper()}, Report: tt.report}))

			got, err := Parse(buf.String())

			require.NoError(t, err)
			assert.Equal(t, tt.report, got.Report)
			assert.Equal(t, "(ti:parsers)", got.Query)
			require.Len(t, got.Papers, 1)
			assert.Equal(t, "1706.03762", got.Papers[0].ID)
		})
	}
}

func TestParseReportTagsWithoutQuery(t *testing.T) {
	var buf bytes.Buffer
	report := "See <search_query>all:x</search_query> and <error>{\"error\":\"x\"}</error>."
	require.NoError(t, Write(&buf, Result{Report: report}))

	got, err := Parse(buf.String())

	require.NoError(t, err)
	assert.Empty(t, got.Query)
	assert.Equal(t, report, got.Report)
}

func TestWriteEmptyPapers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Result{Report: "r"}))

	assert.Equal(t, "<papers>{\"papers\":[]}</papers>\n<final_report>r</final_report>\n", buf.String())
}

func TestParseMissingBlocks(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"no papers", "<final_report>r</final_report>"},
		{"no report", `<papers>{"papers":[]}</papers>`},
		{"unterminated report", `<papers>{"papers":[]}</papers><final_report>r`},
		{"nothing", "progress only\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.output)
			assert.True(t, eris.Is(err, ErrMissingBlock), "got %v", err)
		})
	}
}

func TestParseQueryOptional(t *testing.T) {
	got, err := Parse(`<papers>{"papers":[]}</papers>` + "\n<final_report></final_report>")
	require.NoError(t, err)
	assert.Empty(t, got.Query)
	assert.Empty(t, got.Papers)
	assert.Empty(t, got.Report)
}

func TestParseBadPapersJSON(t *testing.T) {
	_, err := Parse("<papers>{nope</papers><final_report>r</final_report>")
	require.Error(t, err)
	assert.False(t, eris.Is(err, ErrMissingBlock))
}

func TestWriteErrorParse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteError(&buf, errors.New("paper source unavailable"), 1540*time.Millisecond))

	_, err := Parse("some progress\n" + buf.String())

	var payload *ErrorPayload
	require.True(t, errors.As(err, &payload))
	assert.Equal(t, "paper source unavailable", payload.Message)
	assert.InDelta(t, 1.5, payload.QueryTime, 1e-9)
}

func TestSeconds(t *testing.T) {
	assert.InDelta(t, 2.3, Seconds(2345*time.Millisecond), 1e-9)
	assert.Zero(t, Seconds(0))
}
