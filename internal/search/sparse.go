package search

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/domain"
)

// SparseIndex is the sparse retrieval leg (§4.1): dot-product ranking over
// domain.SparseVector term-weight maps, using roaring bitmaps as an
// inverted-postings candidate filter so a query only scores documents that
// share at least one term, rather than scanning the full corpus.
type SparseIndex struct {
	docIDs  []string
	vectors []domain.SparseVector
	// postings maps a term to the bitmap of internal doc indices (into
	// docIDs/vectors) whose sparse vector contains that term.
	postings map[string]*roaring.Bitmap
}

// NewSparseIndex builds postings over the given id/vector pairs.
func NewSparseIndex(ids []string, vectors []domain.SparseVector) *SparseIndex {
	idx := &SparseIndex{
		docIDs:   ids,
		vectors:  vectors,
		postings: make(map[string]*roaring.Bitmap),
	}
	for docIdx, v := range vectors {
		for term := range v {
			bm, ok := idx.postings[term]
			if !ok {
				bm = roaring.New()
				idx.postings[term] = bm
			}
			bm.Add(uint32(docIdx))
		}
	}
	return idx
}

// Search returns up to limit doc ids ranked by dot product against query,
// descending. Candidate generation is the union of postings for every term
// in query; documents sharing no term with query score 0 and are excluded.
func (s *SparseIndex) Search(query domain.SparseVector, limit int) RankedList {
	if len(query) == 0 || len(s.docIDs) == 0 {
		return nil
	}
	candidates := roaring.New()
	for term := range query {
		if bm, ok := s.postings[term]; ok {
			candidates.Or(bm)
		}
	}
	if candidates.IsEmpty() {
		return nil
	}

	type scored struct {
		id    string
		score float64
	}
	out := make([]scored, 0, candidates.GetCardinality())
	it := candidates.Iterator()
	for it.HasNext() {
		docIdx := it.Next()
		out = append(out, scored{id: s.docIDs[docIdx], score: dotProduct(query, s.vectors[docIdx])})
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

func dotProduct(a, b domain.SparseVector) float64 {
	// Iterate the smaller map for efficiency.
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for term, wa := range a {
		if wb, ok := b[term]; ok {
			sum += wa * wb
		}
	}
	return sum
}
