package domain

import "time"

// SortBy enumerates the columns a Query can be ordered by (§4.1).
type SortBy string

const (
	SortRelevance SortBy = "relevance"
	SortUpdatedAt SortBy = "updated_at"
	SortCreatedAt SortBy = "created_at"
	SortQuality   SortBy = "quality_score"
	SortTitle     SortBy = "title"
)

// SortDir is ascending or descending.
type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// Filters narrows the candidate set before ranking (§4.1).
type Filters struct {
	ClassificationCode []string
	Type                []string
	Language            []string
	ReadStatus          []ReadStatus
	CreatedFrom         *time.Time
	CreatedTo           *time.Time
	UpdatedFrom         *time.Time
	UpdatedTo           *time.Time
	SubjectAny          []string // match if >=1 present
	SubjectAll          []string // match iff all present
	MinQuality          *float64
}

// Query is the Search() request shape (§4.1).
type Query struct {
	Text              string
	Filters           Filters
	Limit             int // [1,100], default 25
	Offset            int // >=0
	SortBy            SortBy
	SortDir           SortDir
	HybridWeight      *float64 // two-way mode override, [0,1]
	EnableReranking   bool
	AdaptiveWeighting bool
}

// DefaultLimit is applied when Limit is unset (zero value).
const DefaultLimit = 25

// MaxLimit is the inclusive upper bound on Limit.
const MaxLimit = 100

// MethodContributions counts how many candidates each retrieval leg
// contributed before fusion (§4.1 SearchResults.method_contributions).
type MethodContributions struct {
	FTS5   int
	Dense  int
	Sparse int
}

// Weights is the fusion weight triple actually used for a search, always
// summing to 1 (§4.2, testable property 2).
type Weights struct {
	Lexical float64
	Dense   float64
	Sparse  float64
}

// FacetBucket is one (value, count) pair within a Facet.
type FacetBucket struct {
	Value string
	Count int
}

// Facets holds the computed facet buckets over the filtered pre-page set
// (§4.1 "Facets").
type Facets struct {
	ClassificationCode []FacetBucket
	Type                []FacetBucket
	Language            []FacetBucket
	ReadStatus          []FacetBucket
	Subject             []FacetBucket // top 25 by count
}

// SearchResults is the Search() response shape (§4.1).
type SearchResults struct {
	Total               int
	Items               []*Resource
	Facets              Facets
	Snippets            map[string]string
	LatencyMS           float64
	MethodContributions MethodContributions
	WeightsUsed         Weights
}
