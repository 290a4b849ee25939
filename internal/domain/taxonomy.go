package domain

// TaxonomyNode is one node of the materialized-path hierarchy used for
// classification and facets (§3, §4.6).
type TaxonomyNode struct {
	ID                       string
	Name                     string
	Slug                     string
	ParentID                 string // "" for roots
	Level                    int    // 0 at roots
	Path                     string // materialized path "/slug1/slug2/..."
	Keywords                 []string
	Description              string
	ResourceCount            int // direct assignments
	DescendantResourceCount  int // transitive
	IsLeaf                   bool
	AllowResources           bool // may hold assignments directly
}

// ResourceTaxonomy is an assignment of a Resource to a TaxonomyNode (§3).
type ResourceTaxonomy struct {
	ResourceID      string
	TaxonomyNodeID  string
	Confidence      float64
	IsPredicted     bool
	PredictedBy     string
	NeedsReview     bool
	ReviewPriority  float64
}

// NeedsReviewThreshold is the §3 confidence threshold below which an
// assignment must be flagged for human review.
const NeedsReviewThreshold = 0.7

// ApplyReviewInvariant enforces "if confidence < 0.7, then needs_review=true
// and review_priority=1-confidence".
func (rt *ResourceTaxonomy) ApplyReviewInvariant() {
	if rt.Confidence < NeedsReviewThreshold {
		rt.NeedsReview = true
		rt.ReviewPriority = 1 - rt.Confidence
	}
}
