package search

import (
	"sort"

	"github.com/coder/hnsw"
)

// DenseIndex is the dense retrieval leg (§4.1): exact cosine similarity over
// every stored embedding. It is the default implementation because the
// spec's exact-cosine contract (testable property 4) must hold bit-for-bit;
// ANNIndex below trades that exactness for sublinear query time and is an
// opt-in substitute for large corpora.
type DenseIndex struct {
	ids        []string
	embeddings [][]float32
}

// NewDenseIndex builds an exhaustive index from id/embedding pairs.
func NewDenseIndex(ids []string, embeddings [][]float32) *DenseIndex {
	return &DenseIndex{ids: ids, embeddings: embeddings}
}

// Search returns up to limit ids ranked by cosine similarity to query,
// descending.
func (d *DenseIndex) Search(query []float32, limit int) RankedList {
	type scored struct {
		id    string
		score float64
	}
	out := make([]scored, 0, len(d.ids))
	for i, id := range d.ids {
		out = append(out, scored{id: id, score: CosineSimilarity(query, d.embeddings[i])})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].id < out[j].id
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	ids := make(RankedList, len(out))
	for i, s := range out {
		ids[i] = s.id
	}
	return ids
}

// ANNIndex wraps coder/hnsw for approximate dense retrieval over large
// corpora where DenseIndex's O(n) scan per query becomes the bottleneck.
// Results are approximate: callers that need the exact-cosine guarantee
// (testable property 4) must use DenseIndex instead.
type ANNIndex struct {
	graph *hnsw.Graph[string]
}

// NewANNIndex builds an empty HNSW graph using cosine distance.
func NewANNIndex() *ANNIndex {
	g := hnsw.NewGraph[string]()
	g.Distance = hnsw.CosineDistance
	return &ANNIndex{graph: g}
}

// Add inserts or replaces a vector under id.
func (a *ANNIndex) Add(id string, embedding []float32) {
	a.graph.Add(hnsw.MakeNode(id, embedding))
}

// Remove deletes id from the graph, if present.
func (a *ANNIndex) Remove(id string) {
	a.graph.Delete(id)
}

// Search returns up to limit approximate nearest neighbors to query.
func (a *ANNIndex) Search(query []float32, limit int) RankedList {
	if a.graph.Len() == 0 {
		return nil
	}
	neighbors := a.graph.Search(query, limit)
	out := make(RankedList, len(neighbors))
	for i, n := range neighbors {
		out[i] = n.Key
	}
	return out
}
