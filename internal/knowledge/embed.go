// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/litreview/internal/llm"
)

const (
	// embedBatch is the number of texts sent per Embed call.
	embedBatch = llm.MaxEmbedBatch

	// maxEmbedRunes truncates documents to fit embedding model input limits.
	maxEmbedRunes = 8000
)

// EmbeddingBackend scores documents by cosine similarity of embedding vectors.
type EmbeddingBackend struct {
	emb  llm.Embedder
	keys []int
	vecs [][]float32
}

// NewEmbeddingBackend returns a backend that embeds through emb.
func NewEmbeddingBackend(emb llm.Embedder) *EmbeddingBackend {
	return &EmbeddingBackend{emb: emb}
}

// Add embeds docs in batches.
func (b *EmbeddingBackend) Add(ctx context.Context, docs []Doc) error {
	for start := 0; start < len(docs); start += embedBatch {
		batch := docs[start:min(start+embedBatch, len(docs))]
		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = clip(d.Text, maxEmbedRunes)
		}
		vecs, err := b.emb.Embed(ctx, texts)
		if err != nil {
			return eris.Wrap(err, "embedding documents")
		}
		if len(vecs) != len(batch) {
			return eris.Errorf("embedder returned %d vectors for %d documents", len(vecs), len(batch))
		}
		for i, d := range batch {
			b.keys = append(b.keys, d.Key)
			b.vecs = append(b.vecs, vecs[i])
		}
	}
	return nil
}

// Score embeds the query and returns its cosine similarity to every document.
func (b *EmbeddingBackend) Score(ctx context.Context, query string) (map[int]float64, error) {
	if len(b.vecs) == 0 {
		return map[int]float64{}, nil
	}
	vecs, err := b.emb.Embed(ctx, []string{clip(query, maxEmbedRunes)})
	if err != nil {
		return nil, eris.Wrap(err, "embedding query")
	}
	if len(vecs) != 1 {
		return nil, eris.Errorf("embedder returned %d vectors for one query", len(vecs))
	}
	scores := make(map[int]float64, len(b.vecs))
	for i, v := range b.vecs {
		scores[b.keys[i]] = cosine(vecs[0], v)
	}
	return scores, nil
}

// Close drops the stored vectors.
func (b *EmbeddingBackend) Close() error {
	b.keys, b.vecs = nil, nil
	return nil
}

// cosine returns 0 for mismatched or zero vectors.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
