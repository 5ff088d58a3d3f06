// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/litreview/pkg/types"
)

// SavedSearch is the on-disk form of a search: the queries that ran and the
// papers they returned. A review can be re-run from it without contacting
// the search service.
type SavedSearch struct {
	Topic     string         `yaml:"topic"`
	Queries   []string       `yaml:"queries"`
	Papers    []*types.Paper `yaml:"papers"`
	Timestamp time.Time      `yaml:"timestamp"`
}

// WriteSavedSearch saves a search to a YAML file.
func WriteSavedSearch(path, topic string, queries []string, papers []*types.Paper) error {
	s := SavedSearch{
		Topic:     topic,
		Queries:   queries,
		Papers:    papers,
		Timestamp: time.Now().UTC(),
	}
	data, err := yaml.Marshal(&s)
	if err != nil {
		return eris.Wrap(err, "marshaling saved search")
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSavedSearch loads a previously saved search from disk.
func ReadSavedSearch(path string) (*SavedSearch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "reading saved search")
	}
	var s SavedSearch
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "parsing saved search")
	}
	return &s, nil
}

// SavedSource replays a saved search as a paper source. Every Fetch returns
// fresh copies of the saved papers with derived fields cleared, so a run can
// classify them again.
type SavedSource struct {
	Saved *SavedSearch
}

// Name returns the source identifier.
func (s *SavedSource) Name() string { return "saved" }

// Fetch ignores the query and returns up to maxResults saved papers.
func (s *SavedSource) Fetch(_ context.Context, _ string, maxResults int) ([]*types.Paper, error) {
	if s.Saved == nil {
		return nil, eris.Wrap(types.ErrSourceUnavailable, "no saved search loaded")
	}
	var out []*types.Paper
	for _, p := range s.Saved.Papers {
		if maxResults > 0 && len(out) == maxResults {
			break
		}
		out = append(out, &types.Paper{
			ID:         p.ID,
			EntryID:    p.EntryID,
			Title:      p.Title,
			Authors:    p.Authors,
			Abstract:   p.Abstract,
			Published:  p.Published,
			Categories: p.Categories,
			PDFURL:     p.PDFURL,
		})
	}
	return out, nil
}
