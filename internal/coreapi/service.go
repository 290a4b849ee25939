// Package coreapi is the service-layer contract the REST surface in
// SPEC_FULL.md §6 is a thin transport wrapper over: one method per REST
// row, so an HTTP gateway (or, today, cmd/neoalexandria) never touches
// internal/search, internal/store, or internal/authority directly.
// Grounded on the teacher's daemon.Client/search.Engine split in
// cmd/amanmcp/cmd/search.go: a narrow interface in front of the engine,
// callable from more than one transport.
package coreapi

import (
	"context"
	"sort"
	"time"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/authority"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/domain"
	apperrors "github.com/ram-tewari/neo-alexandria-sub002/internal/errors"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/search"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/searchmetrics"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/store"
)

// MethodResult is one retrieval leg's standalone output (GET
// /search/compare-methods): the leg's own ranked ids plus its latency in
// isolation, not run through fusion.
type MethodResult struct {
	Method    string
	IDs       search.RankedList
	LatencyMS float64
}

// MethodComparison is the per-method result-set-plus-latencies response
// shape for GET /search/compare-methods.
type MethodComparison struct {
	Query   string
	Results []MethodResult
}

// ClassificationBucket is one personal-classification code's resource
// count, the leaf of the "nested forest of top-level codes" GET
// /authority/classification/tree returns. The codes have no further
// nesting in this system (§4.6 defines exactly four top-level codes), so
// the forest is one level deep.
type ClassificationBucket struct {
	Code  string
	Count int
}

// TaxonomyTreeNode is one node of the nested tree GET /taxonomy/tree
// returns, with its children eagerly loaded up to the requested depth.
type TaxonomyTreeNode struct {
	Node     *domain.TaxonomyNode
	Children []*TaxonomyTreeNode
}

// Service is the REST surface's backing contract: one method per
// SPEC_FULL.md §6 row.
type Service interface {
	// Search runs the full §4.1 pipeline (POST /search): structured mode
	// when Text is empty, hybrid/relevance mode otherwise.
	Search(ctx context.Context, q domain.Query) (*domain.SearchResults, error)

	// ThreeWayHybridSearch is GET /search/three-way-hybrid: always runs
	// all three legs (no HybridWeight override).
	ThreeWayHybridSearch(ctx context.Context, query string, limit int, enableReranking, adaptiveWeighting bool) (*domain.SearchResults, error)

	// CompareMethods is GET /search/compare-methods: each retrieval leg
	// run standalone, never fused, with its own latency.
	CompareMethods(ctx context.Context, query string, limit int) (*MethodComparison, error)

	// Evaluate is POST /search/evaluate.
	Evaluate(ctx context.Context, query string, judgments searchmetrics.Judgments, k int) (*searchmetrics.EvaluationMetrics, error)

	// SuggestSubjects is GET /authority/subjects/suggest.
	SuggestSubjects(ctx context.Context, prefix string) ([]string, error)

	// ClassificationTree is GET /authority/classification/tree.
	ClassificationTree(ctx context.Context) ([]ClassificationBucket, error)

	// TaxonomyTree is GET /taxonomy/tree. An empty rootID lists every root;
	// maxDepth<=0 means unbounded.
	TaxonomyTree(ctx context.Context, rootID string, maxDepth int) ([]*TaxonomyTreeNode, error)

	// CreateTaxonomyNode is POST /taxonomy/nodes.
	CreateTaxonomyNode(ctx context.Context, n *domain.TaxonomyNode) error
	// UpdateTaxonomyNode is PUT /taxonomy/nodes/{id}.
	UpdateTaxonomyNode(ctx context.Context, n *domain.TaxonomyNode) error
	// DeleteTaxonomyNode is DELETE /taxonomy/nodes/{id}.
	DeleteTaxonomyNode(ctx context.Context, id string, cascade bool) error
	// MoveTaxonomyNode is POST /taxonomy/nodes/{id}/move.
	MoveTaxonomyNode(ctx context.Context, id, newParentID string) error
}

type service struct {
	engine    *search.Engine
	resources *store.ResourceStore
	taxonomy  *store.TaxonomyStore
	authority *authority.Service
}

// NewService wires the search engine, resource/taxonomy stores, and the
// authority service into a single Service contract.
func NewService(engine *search.Engine, resources *store.ResourceStore, taxonomy *store.TaxonomyStore, auth *authority.Service) Service {
	return &service{engine: engine, resources: resources, taxonomy: taxonomy, authority: auth}
}

func (s *service) Search(ctx context.Context, q domain.Query) (*domain.SearchResults, error) {
	return s.engine.Search(ctx, q)
}

func (s *service) ThreeWayHybridSearch(ctx context.Context, query string, limit int, enableReranking, adaptiveWeighting bool) (*domain.SearchResults, error) {
	return s.engine.Search(ctx, domain.Query{
		Text:              query,
		Limit:             limit,
		EnableReranking:   enableReranking,
		AdaptiveWeighting: adaptiveWeighting,
	})
}

func (s *service) CompareMethods(ctx context.Context, query string, limit int) (*MethodComparison, error) {
	if limit <= 0 {
		limit = domain.DefaultLimit
	}
	cmp := &MethodComparison{Query: query}

	if s.engine.Lexical != nil {
		start := time.Now()
		ids, err := s.engine.Lexical.Search(query, limit)
		lat := elapsedMS(start)
		if err != nil {
			s.engine.Log.Warn("compare-methods: lexical leg failed", "error", err)
			ids = nil
		}
		cmp.Results = append(cmp.Results, MethodResult{Method: "lexical", IDs: ids, LatencyMS: lat})
	}

	if s.engine.Dense != nil && s.engine.Embedder != nil {
		start := time.Now()
		var ids search.RankedList
		vec, err := s.engine.Embedder.EmbedDense(ctx, query)
		if err != nil {
			s.engine.Log.Warn("compare-methods: dense embedding unavailable", "error", err)
		} else if len(vec) > 0 {
			ids = s.engine.Dense.Search(vec, limit)
		}
		cmp.Results = append(cmp.Results, MethodResult{Method: "dense", IDs: ids, LatencyMS: elapsedMS(start)})
	}

	if s.engine.Sparse != nil && s.engine.Embedder != nil {
		start := time.Now()
		var ids search.RankedList
		sv, err := s.engine.Embedder.EmbedSparse(ctx, query)
		if err != nil {
			s.engine.Log.Warn("compare-methods: sparse embedding unavailable", "error", err)
		} else if len(sv) > 0 {
			ids = s.engine.Sparse.Search(sv, limit)
		}
		cmp.Results = append(cmp.Results, MethodResult{Method: "sparse", IDs: ids, LatencyMS: elapsedMS(start)})
	}

	return cmp, nil
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func (s *service) Evaluate(ctx context.Context, query string, judgments searchmetrics.Judgments, k int) (*searchmetrics.EvaluationMetrics, error) {
	if k <= 0 {
		k = domain.DefaultLimit
	}
	res, err := s.engine.Search(ctx, domain.Query{Text: query, Limit: k})
	if err != nil {
		// §7: a failed evaluation returns zero metrics, not an error.
		zero := searchmetrics.EvaluationMetrics{}
		return &zero, nil
	}
	ids := make([]string, len(res.Items))
	for i, r := range res.Items {
		ids[i] = r.ID
	}
	metrics := searchmetrics.Evaluate(ids, judgments, k)
	return &metrics, nil
}

func (s *service) SuggestSubjects(ctx context.Context, prefix string) ([]string, error) {
	return s.authority.SuggestSubjects(prefix)
}

func (s *service) ClassificationTree(ctx context.Context) ([]ClassificationBucket, error) {
	resources, err := s.resources.List()
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, r := range resources {
		if r.ClassificationCode != "" {
			counts[r.ClassificationCode]++
		}
	}
	codes := []string{authority.CodeGeneral, authority.CodeLanguage, authority.CodeScience, authority.CodeHistory}
	out := make([]ClassificationBucket, 0, len(codes))
	for _, c := range codes {
		out = append(out, ClassificationBucket{Code: c, Count: counts[c]})
	}
	return out, nil
}

func (s *service) TaxonomyTree(ctx context.Context, rootID string, maxDepth int) ([]*TaxonomyTreeNode, error) {
	if rootID == "" {
		roots, err := s.taxonomy.Children("")
		if err != nil {
			return nil, err
		}
		sort.Slice(roots, func(i, j int) bool { return roots[i].Name < roots[j].Name })
		out := make([]*TaxonomyTreeNode, 0, len(roots))
		for _, r := range roots {
			node, err := s.buildSubtree(r, maxDepth, 0)
			if err != nil {
				return nil, err
			}
			out = append(out, node)
		}
		return out, nil
	}

	root, err := s.taxonomy.Get(rootID)
	if err != nil {
		return nil, err
	}
	node, err := s.buildSubtree(root, maxDepth, 0)
	if err != nil {
		return nil, err
	}
	return []*TaxonomyTreeNode{node}, nil
}

func (s *service) buildSubtree(n *domain.TaxonomyNode, maxDepth, depth int) (*TaxonomyTreeNode, error) {
	out := &TaxonomyTreeNode{Node: n}
	if maxDepth > 0 && depth >= maxDepth {
		return out, nil
	}
	children, err := s.taxonomy.Children(n.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		child, err := s.buildSubtree(c, maxDepth, depth+1)
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, child)
	}
	return out, nil
}

func (s *service) CreateTaxonomyNode(ctx context.Context, n *domain.TaxonomyNode) error {
	if n == nil || n.ID == "" {
		return apperrors.InvalidArgument(apperrors.CodeInvalidSlug, "taxonomy node requires an id")
	}
	return s.taxonomy.Create(n)
}

func (s *service) UpdateTaxonomyNode(ctx context.Context, n *domain.TaxonomyNode) error {
	if n == nil || n.ID == "" {
		return apperrors.InvalidArgument(apperrors.CodeInvalidSlug, "taxonomy node requires an id")
	}
	if n.ParentID != "" {
		if err := s.taxonomy.Move(n.ID, n.ParentID); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) DeleteTaxonomyNode(ctx context.Context, id string, cascade bool) error {
	return s.taxonomy.Delete(id, cascade)
}

func (s *service) MoveTaxonomyNode(ctx context.Context, id, newParentID string) error {
	return s.taxonomy.Move(id, newParentID)
}
