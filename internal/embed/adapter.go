package embed

import (
	"context"
	"sort"
	"strings"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/domain"
)

// QueryEmbedder adapts an Embedder to internal/search.QueryEmbedder: a
// dense vector from the embedding provider, plus a deterministic bag-of-
// words sparse vector. No example repo or the original Python service
// ships a sparse text embedder (the original's "sparse" leg is itself a
// placeholder per SPEC_FULL.md), so EmbedSparse is a from-scratch,
// standard-library term-frequency vectorizer rather than something
// grounded on a corpus library — justified in DESIGN.md.
type QueryEmbedder struct {
	Dense Embedder
}

// NewQueryEmbedder wraps a dense Embedder for use by the search engine.
func NewQueryEmbedder(dense Embedder) *QueryEmbedder {
	return &QueryEmbedder{Dense: dense}
}

// EmbedDense delegates to the wrapped Embedder.
func (q *QueryEmbedder) EmbedDense(ctx context.Context, text string) ([]float32, error) {
	return q.Dense.Embed(ctx, text)
}

// EmbedSparse tokenizes text into lowercase words and returns a normalized
// term-frequency vector, keyed by term so it lines up with
// domain.SparseVector's term_id->weight shape and internal/search's roaring
// postings.
func (q *QueryEmbedder) EmbedSparse(ctx context.Context, text string) (domain.SparseVector, error) {
	terms := tokenize(text)
	if len(terms) == 0 {
		return nil, nil
	}
	counts := make(map[string]int, len(terms))
	for _, t := range terms {
		counts[t]++
	}
	out := make(domain.SparseVector, len(counts))
	for term, n := range counts {
		out[term] = float64(n) / float64(len(terms))
	}
	return out, nil
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	sort.Strings(fields) // stable ordering keeps term-frequency maps deterministic in tests
	return fields
}
