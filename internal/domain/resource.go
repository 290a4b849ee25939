// Package domain holds the record types shared by the search engine, the
// authority/taxonomy service, and the event bus: Resource, TaxonomyNode,
// ResourceTaxonomy, and Event. Field names are stable wire names.
package domain

import "time"

// ReadStatus enumerates the lifecycle of a Resource's reading state.
type ReadStatus string

const (
	ReadStatusUnread      ReadStatus = "unread"
	ReadStatusInProgress  ReadStatus = "in_progress"
	ReadStatusCompleted   ReadStatus = "completed"
	ReadStatusArchived    ReadStatus = "archived"
)

// IngestionStatus enumerates the lifecycle of a Resource's ingestion.
type IngestionStatus string

const (
	IngestionPending    IngestionStatus = "pending"
	IngestionProcessing IngestionStatus = "processing"
	IngestionCompleted  IngestionStatus = "completed"
	IngestionFailed     IngestionStatus = "failed"
)

// QualityDimensions holds the five dimension scores that roll up into
// QualityOverall (see §4.7 of SPEC_FULL.md). Weights sum to 1.
type QualityDimensions struct {
	Accuracy     float64
	Completeness float64
	Consistency  float64
	Timeliness   float64
	Relevance    float64
}

// QualityWeights mirrors QualityDimensions but holds the per-resource
// weighting used to compute QualityOverall. Defaults per §4.7.
type QualityWeights struct {
	Accuracy     float64
	Completeness float64
	Consistency  float64
	Timeliness   float64
	Relevance    float64
}

// DefaultQualityWeights returns the §4.7 default dimension weights.
func DefaultQualityWeights() QualityWeights {
	return QualityWeights{
		Accuracy:     0.30,
		Completeness: 0.25,
		Consistency:  0.20,
		Timeliness:   0.15,
		Relevance:    0.10,
	}
}

// Overall computes the weighted sum Σ w_d·s_d for the given dimensions and
// weights, the invariant enforced at write time by the quality collaborator.
func (w QualityWeights) Overall(d QualityDimensions) float64 {
	return w.Accuracy*d.Accuracy +
		w.Completeness*d.Completeness +
		w.Consistency*d.Consistency +
		w.Timeliness*d.Timeliness +
		w.Relevance*d.Relevance
}

// SparseVector is a term_id -> weight mapping; zero-weight entries must be
// absent and weights must be non-negative (enforced by Validate).
type SparseVector map[string]float64

// Validate checks the SparseVector invariant: non-negative weights, no
// zero-weight entries.
func (s SparseVector) Validate() error {
	for term, w := range s {
		if w < 0 {
			return &invalidSparseWeight{term: term, weight: w}
		}
		if w == 0 {
			return &invalidSparseWeight{term: term, weight: w, zero: true}
		}
	}
	return nil
}

type invalidSparseWeight struct {
	term   string
	weight float64
	zero   bool
}

func (e *invalidSparseWeight) Error() string {
	if e.zero {
		return "sparse_embedding: zero-weight entry for term " + e.term + " must be absent"
	}
	return "sparse_embedding: negative weight for term " + e.term
}

// Resource is the indexed unit (§3). description is the main indexed body.
type Resource struct {
	ID                       string
	Title                    string
	Description              string
	Subject                  []string
	Creator                  string
	Publisher                string
	Language                 string
	Type                     string
	ClassificationCode       string
	ReadStatus               ReadStatus
	QualityOverall           float64
	Quality                  QualityDimensions
	QualityWeights           QualityWeights
	Embedding                []float32
	SparseEmbedding          SparseVector
	SparseEmbeddingModel     string
	SparseEmbeddingUpdatedAt *time.Time
	IngestionStatus          IngestionStatus
	IngestionError           string
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// Searchable reports whether the resource is eligible for retrieval, per
// the §3 invariant "a resource is searchable iff ingestion_status=completed".
func (r *Resource) Searchable() bool {
	return r.IngestionStatus == IngestionCompleted
}

// DimensionMismatch reports whether Embedding's length differs from dim.
// Per §4.1, a mismatch yields similarity 0, never an error.
func (r *Resource) DimensionMismatch(dim int) bool {
	return len(r.Embedding) > 0 && len(r.Embedding) != dim
}
