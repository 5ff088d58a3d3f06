// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package structured

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litreview/pkg/types"
)

type verdict struct {
	Summary    string `json:"summary"`
	IsRelevant string `json:"is_relevant"`
	Reasoning  string `json:"reasoning"`
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bare", `{"summary": "s", "is_relevant": "yes", "reasoning": "r"}`},
		{"json fence", "```json\n{\"summary\": \"s\", \"is_relevant\": \"yes\", \"reasoning\": \"r\"}\n```"},
		{"plain fence", "```\n{\"summary\": \"s\", \"is_relevant\": \"yes\", \"reasoning\": \"r\"}\n```"},
		{"prose around", "Here is my answer:\n{\"summary\": \"s\", \"is_relevant\": \"yes\", \"reasoning\": \"r\"}\nHope it helps."},
		{"trailing commas", "{\"summary\": \"s\", \"is_relevant\": \"yes\", \"reasoning\": \"r\",\n}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v verdict
			require.NoError(t, Decode(tt.input, &v))
			assert.Equal(t, verdict{Summary: "s", IsRelevant: "yes", Reasoning: "r"}, v)
		})
	}
}

func TestDecodeNestedTrailingCommas(t *testing.T) {
	input := `{"title": "T", "sections": [{"title": "A", "sections": [{"title": "A1",},],},],}`
	var v struct {
		Title    string `json:"title"`
		Sections []struct {
			Title    string `json:"title"`
			Sections []struct {
				Title string `json:"title"`
			} `json:"sections"`
		} `json:"sections"`
	}
	require.NoError(t, Decode(input, &v))
	require.Len(t, v.Sections, 1)
	require.Len(t, v.Sections[0].Sections, 1)
	assert.Equal(t, "A1", v.Sections[0].Sections[0].Title)
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no json", "I cannot answer that."},
		{"truncated", `{"summary": "s", "is_relevant": `},
		{"wrong type", `{"summary": 3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v verdict
			err := Decode(tt.input, &v)
			require.Error(t, err)
			assert.True(t, eris.Is(err, types.ErrStructuredOutput))
		})
	}
}

func TestRemoveTrailingCommasKeepsStrings(t *testing.T) {
	in := `{"a": "x,]", "b": [1, 2,]}`
	assert.Equal(t, `{"a": "x,]", "b": [1, 2]}`, RemoveTrailingCommas(in))
}

func TestExtractArray(t *testing.T) {
	assert.Equal(t, `["a", "b"]`, Extract("```json\n[\"a\", \"b\",]\n```"))
}
