// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build sqlite_fts5

package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litreview/pkg/types"
)

func TestFTSBackendRanking(t *testing.T) {
	b, err := NewFTSBackend()
	require.NoError(t, err)

	papers := []*types.Paper{
		paper("a", "convolutional networks for image vision tasks"),
		paper("b", "graph neural networks predict molecule properties from molecule graphs"),
		paper("c", "a survey of molecule generation"),
	}
	idx, err := Build(context.Background(), papers, b)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	hits, err := idx.QueryScored(context.Background(), "Which molecule graph models exist?", 3)
	require.NoError(t, err)

	require.Len(t, hits, 3)
	assert.Equal(t, "b", hits[0].Paper.ID)
	assert.Greater(t, hits[0].Score, 0.0)
	assert.Equal(t, "a", hits[2].Paper.ID)
	assert.Zero(t, hits[2].Score)
}

func TestFTSBackendNoTerms(t *testing.T) {
	b, err := NewFTSBackend()
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	scores, err := b.Score(context.Background(), "?!")
	require.NoError(t, err)
	assert.Empty(t, scores)
}
