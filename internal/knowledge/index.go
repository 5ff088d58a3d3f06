// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package knowledge builds the run-scoped retrieval index over the relevant
// content of classified papers. The index holds weak references to papers so
// it never extends their lifetime.
package knowledge

import (
	"cmp"
	"context"
	"slices"
	"weak"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/litreview/internal/llm"
	"github.com/pdiddy/litreview/pkg/types"
)

// Doc is one unit of indexed text. Key is the ingestion ordinal.
type Doc struct {
	Key  int
	Text string
}

// Backend scores indexed documents against a query. Score returns a score per
// matched key; keys absent from the map score 0.
type Backend interface {
	Add(ctx context.Context, docs []Doc) error
	Score(ctx context.Context, query string) (map[int]float64, error)
	Close() error
}

// NewBackend returns the backend selected by cfg. The embedding backend
// requires emb.
func NewBackend(cfg types.IndexConfig, emb llm.Embedder) (Backend, error) {
	switch cfg.Backend {
	case types.IndexFTS:
		return NewFTSBackend()
	case types.IndexEmbedding, "":
		if emb == nil {
			return nil, eris.New("embedding index requires an embedding-capable provider")
		}
		return NewEmbeddingBackend(emb), nil
	default:
		return nil, eris.Errorf("unknown index backend %q", cfg.Backend)
	}
}

// Hit is a query result with its similarity score.
type Hit struct {
	Paper *types.Paper
	Score float64
}

// Index is an immutable top-k similarity index. It lives for one run.
type Index struct {
	backend Backend
	refs    []weak.Pointer[types.Paper]
}

// Build indexes the RelevantContent of every paper that has some. Keys are
// assigned in input order. The backend is owned by the returned index.
func Build(ctx context.Context, papers []*types.Paper, backend Backend) (*Index, error) {
	idx := &Index{backend: backend}
	var docs []Doc
	for _, p := range papers {
		if p == nil || p.RelevantContent == "" {
			continue
		}
		docs = append(docs, Doc{Key: len(idx.refs), Text: docText(p)})
		idx.refs = append(idx.refs, weak.Make(p))
	}
	if len(docs) > 0 {
		if err := backend.Add(ctx, docs); err != nil {
			return nil, eris.Wrap(err, "indexing relevant content")
		}
	}
	zap.L().Debug("retrieval index built", zap.Int("docs", len(docs)))
	return idx, nil
}

func docText(p *types.Paper) string {
	if p.Title == "" {
		return p.RelevantContent
	}
	return p.Title + "\n\n" + p.RelevantContent
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	return len(idx.refs)
}

// Papers returns the indexed papers still alive, in ingestion order.
func (idx *Index) Papers() []*types.Paper {
	var out []*types.Paper
	for _, ref := range idx.refs {
		if p := ref.Value(); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// QueryScored returns up to topK papers ordered by descending score, ties
// broken by ingestion order. topK is clamped to Len; topK <= 0 yields no
// hits. Papers that have been garbage collected are skipped.
func (idx *Index) QueryScored(ctx context.Context, text string, topK int) ([]Hit, error) {
	if topK <= 0 || idx.Len() == 0 {
		return nil, nil
	}
	topK = min(topK, idx.Len())

	scores, err := idx.backend.Score(ctx, text)
	if err != nil {
		return nil, eris.Wrap(err, "scoring query")
	}

	hits := make([]Hit, 0, idx.Len())
	for key, ref := range idx.refs {
		p := ref.Value()
		if p == nil {
			continue
		}
		hits = append(hits, Hit{Paper: p, Score: scores[key]})
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Query is QueryScored without the scores.
func (idx *Index) Query(ctx context.Context, text string, topK int) ([]*types.Paper, error) {
	hits, err := idx.QueryScored(ctx, text, topK)
	if err != nil {
		return nil, err
	}
	papers := make([]*types.Paper, len(hits))
	for i, h := range hits {
		papers[i] = h.Paper
	}
	return papers, nil
}

// Close releases backend resources.
func (idx *Index) Close() error {
	return idx.backend.Close()
}
