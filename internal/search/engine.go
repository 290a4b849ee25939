// Engine orchestration for the hybrid search pipeline (§4.1): run the three
// retrieval legs concurrently with graceful degradation on a leg failure,
// fuse with RRF, apply filters/facets/snippets, optionally rerank, and
// paginate. Grounded on the teacher's pkg/searcher engine's concurrent
// fan-out shape, generalized from two legs to three and routed through
// errgroup for per-leg error isolation rather than a hand-rolled WaitGroup.
package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/domain"
)

// LexicalSearcher is the lexical retrieval leg's contract, implemented by
// internal/store.LexicalIndex.
type LexicalSearcher interface {
	Search(query string, limit int) (RankedList, error)
}

// DenseSearcher is the dense retrieval leg's contract, implemented by
// DenseIndex and ANNIndex.
type DenseSearcher interface {
	Search(query []float32, limit int) RankedList
}

// SparseSearcher is the sparse retrieval leg's contract, implemented by
// SparseIndex.
type SparseSearcher interface {
	Search(query domain.SparseVector, limit int) RankedList
}

// ResourceFetcher loads a full Resource by id, implemented by
// internal/store.ResourceStore.
type ResourceFetcher interface {
	Get(id string) (*domain.Resource, error)
}

// ResourceLister loads every resource, implemented by
// internal/store.ResourceStore. Backs structured-mode search (§4.1 routing
// rule 1): an empty-text Query lists/filters/sorts/paginates the full
// corpus instead of running any retrieval leg.
type ResourceLister interface {
	List() ([]*domain.Resource, error)
}

// QueryEmbedder turns query text into a dense vector and, optionally, a
// sparse vector; both are nil-safe no-ops when embedding is unavailable.
type QueryEmbedder interface {
	EmbedDense(ctx context.Context, text string) ([]float32, error)
	EmbedSparse(ctx context.Context, text string) (domain.SparseVector, error)
}

// Engine wires together the three retrieval legs, fusion, reranking, and
// result assembly into the single Search entrypoint described by §4.1 and
// the coreapi.Service contract in SPEC_FULL.md §6.
type Engine struct {
	Lexical  LexicalSearcher
	Dense    DenseSearcher
	Sparse   SparseSearcher
	Fetcher  ResourceFetcher
	Lister   ResourceLister
	Embedder QueryEmbedder
	Reranker interface {
		Rerank(ctx context.Context, query string, candidates []RerankCandidate, topK int) []Reranked
	}
	Fusion *RRFFusion
	Log    *slog.Logger

	// CandidatePoolSize bounds how many ids each leg contributes before
	// fusion; 0 uses a sensible default scaled off the page size.
	CandidatePoolSize int
}

// NewEngine builds an Engine with equal-thirds fusion and a NoOpReranker.
func NewEngine(lexical LexicalSearcher, dense DenseSearcher, sparse SparseSearcher, fetcher ResourceFetcher, embedder QueryEmbedder, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		Lexical:  lexical,
		Dense:    dense,
		Sparse:   sparse,
		Fetcher:  fetcher,
		Embedder: embedder,
		Reranker: NoOpReranker{},
		Fusion:   NewRRFFusion(log),
		Log:      log,
	}
	if lister, ok := fetcher.(ResourceLister); ok {
		e.Lister = lister
	}
	return e
}

// Search executes the full §4.1 pipeline. An empty Text routes to
// structured mode (§4.1 routing rule 1): filter/sort/paginate/facet the
// full corpus with no retrieval leg and no snippets.
func (e *Engine) Search(ctx context.Context, q domain.Query) (*domain.SearchResults, error) {
	start := time.Now()

	if strings.TrimSpace(q.Text) == "" {
		return e.structuredSearch(q, start)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = domain.DefaultLimit
	}
	if limit > domain.MaxLimit {
		limit = domain.MaxLimit
	}
	pool := e.CandidatePoolSize
	if pool <= 0 {
		pool = 4 * (limit + q.Offset)
		if pool < 200 {
			pool = 200
		}
	}

	weights := e.resolveWeights(q)

	var lexIDs, denseIDs, sparseIDs RankedList
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if e.Lexical == nil || q.Text == "" {
			return nil
		}
		ids, err := e.Lexical.Search(q.Text, pool)
		if err != nil {
			e.Log.Warn("search: lexical leg degraded", "error", err)
			return nil
		}
		lexIDs = ids
		return nil
	})
	g.Go(func() error {
		if e.Dense == nil || e.Embedder == nil || q.Text == "" {
			return nil
		}
		vec, err := e.Embedder.EmbedDense(gctx, q.Text)
		if err != nil || len(vec) == 0 {
			if err != nil {
				e.Log.Warn("search: dense embedding unavailable", "error", err)
			}
			return nil
		}
		denseIDs = e.Dense.Search(vec, pool)
		return nil
	})
	g.Go(func() error {
		if e.Sparse == nil || e.Embedder == nil || q.Text == "" {
			return nil
		}
		sv, err := e.Embedder.EmbedSparse(gctx, q.Text)
		if err != nil || len(sv) == 0 {
			if err != nil {
				e.Log.Warn("search: sparse embedding unavailable", "error", err)
			}
			return nil
		}
		sparseIDs = e.Sparse.Search(sv, pool)
		return nil
	})
	g.Wait() // each goroutine isolates its own errors internally; Wait never returns non-nil here

	var fused []FusedDoc
	if q.HybridWeight != nil {
		// Two-way mode (§4.1): min-max-normalized linear combination, not
		// RRF. Sparse plays no part here.
		fused = TwoWayFuse(lexIDs, denseIDs, weights.Dense)
	} else {
		lists := []RankedList{lexIDs, denseIDs, sparseIDs}
		w := []float64{weights.Lexical, weights.Dense, weights.Sparse}
		fused = e.Fusion.Fuse(lists, w)
	}

	candidates, facetSource, total := e.hydrateAndFilter(fused, q.Filters)

	e.sortCandidates(candidates, q)

	if q.EnableReranking && e.Reranker != nil && len(candidates) > 0 {
		candidates = e.applyRerank(ctx, q.Text, candidates)
	}

	page := paginate(candidates, q.Offset, limit)

	items := make([]*domain.Resource, len(page))
	for i, c := range page {
		items[i] = c.resource
	}

	return &domain.SearchResults{
		Total:               total,
		Items:               items,
		Facets:              computeFacets(facetSource),
		Snippets:            computeSnippets(items, q.Text),
		LatencyMS:           float64(time.Since(start).Microseconds()) / 1000.0,
		MethodContributions: countContributions(fused),
		WeightsUsed:         weights,
	}, nil
}

// resolveWeights implements §4.1's weight precedence. HybridWeight is the
// two-way mode's *dense* weight w: the fused score is
// (1-w)*lexical + w*dense (see TwoWayFuse), so w=0 reduces to a pure
// lexical ordering and w=1 to a pure dense ordering.
func (e *Engine) resolveWeights(q domain.Query) domain.Weights {
	if q.HybridWeight != nil {
		dense := *q.HybridWeight
		if dense < 0 {
			dense = 0
		}
		if dense > 1 {
			dense = 1
		}
		return domain.Weights{Lexical: 1 - dense, Dense: dense, Sparse: 0}
	}
	if q.AdaptiveWeighting {
		return AdaptiveWeights(q.Text)
	}
	return domain.Weights{Lexical: 1.0 / 3, Dense: 1.0 / 3, Sparse: 1.0 / 3}
}

// structuredSearch implements §4.1 routing rule 1: an empty-text Query
// lists the full corpus, applies filters, sorts by SortBy, paginates, and
// computes facets over the filtered set. No retrieval leg runs and no
// snippets are produced.
func (e *Engine) structuredSearch(q domain.Query, start time.Time) (*domain.SearchResults, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = domain.DefaultLimit
	}
	if limit > domain.MaxLimit {
		limit = domain.MaxLimit
	}

	if e.Lister == nil {
		return &domain.SearchResults{
			LatencyMS: float64(time.Since(start).Microseconds()) / 1000.0,
		}, nil
	}

	all, err := e.Lister.List()
	if err != nil {
		return nil, err
	}

	filtered := make([]*domain.Resource, 0, len(all))
	for _, r := range all {
		if !r.Searchable() || !matchesFilters(r, q.Filters) {
			continue
		}
		filtered = append(filtered, r)
	}

	candidates := make([]candidate, len(filtered))
	for i, r := range filtered {
		candidates[i] = candidate{resource: r}
	}
	e.sortCandidates(candidates, q)

	total := len(candidates)
	page := paginate(candidates, q.Offset, limit)
	items := make([]*domain.Resource, len(page))
	for i, c := range page {
		items[i] = c.resource
	}

	return &domain.SearchResults{
		Total:     total,
		Items:     items,
		Facets:    computeFacets(filtered),
		LatencyMS: float64(time.Since(start).Microseconds()) / 1000.0,
	}, nil
}

type candidate struct {
	resource *domain.Resource
	fused    FusedDoc
}

func (e *Engine) hydrateAndFilter(fused []FusedDoc, filters domain.Filters) ([]candidate, []*domain.Resource, int) {
	out := make([]candidate, 0, len(fused))
	facetSource := make([]*domain.Resource, 0, len(fused))
	for _, f := range fused {
		r, err := e.Fetcher.Get(f.ID)
		if err != nil || r == nil || !r.Searchable() {
			continue
		}
		if !matchesFilters(r, filters) {
			continue
		}
		facetSource = append(facetSource, r)
		out = append(out, candidate{resource: r, fused: f})
	}
	return out, facetSource, len(out)
}

func matchesFilters(r *domain.Resource, f domain.Filters) bool {
	if len(f.ClassificationCode) > 0 && !containsStr(f.ClassificationCode, r.ClassificationCode) {
		return false
	}
	if len(f.Type) > 0 && !containsStr(f.Type, r.Type) {
		return false
	}
	if len(f.Language) > 0 && !containsStr(f.Language, r.Language) {
		return false
	}
	if len(f.ReadStatus) > 0 {
		matched := false
		for _, rs := range f.ReadStatus {
			if rs == r.ReadStatus {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if f.CreatedFrom != nil && r.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && r.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	if f.UpdatedFrom != nil && r.UpdatedAt.Before(*f.UpdatedFrom) {
		return false
	}
	if f.UpdatedTo != nil && r.UpdatedAt.After(*f.UpdatedTo) {
		return false
	}
	if f.MinQuality != nil && r.QualityOverall < *f.MinQuality {
		return false
	}
	if len(f.SubjectAny) > 0 && !anyOf(f.SubjectAny, r.Subject) {
		return false
	}
	if len(f.SubjectAll) > 0 && !allOf(f.SubjectAll, r.Subject) {
		return false
	}
	return true
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func anyOf(want, have []string) bool {
	for _, w := range want {
		if containsStr(have, w) {
			return true
		}
	}
	return false
}

func allOf(want, have []string) bool {
	for _, w := range want {
		if !containsStr(have, w) {
			return false
		}
	}
	return true
}

func (e *Engine) sortCandidates(candidates []candidate, q domain.Query) {
	switch q.SortBy {
	case domain.SortUpdatedAt:
		sort.SliceStable(candidates, cmpBy(q.SortDir, func(i, j int) bool { return candidates[i].resource.UpdatedAt.Before(candidates[j].resource.UpdatedAt) }))
	case domain.SortCreatedAt:
		sort.SliceStable(candidates, cmpBy(q.SortDir, func(i, j int) bool { return candidates[i].resource.CreatedAt.Before(candidates[j].resource.CreatedAt) }))
	case domain.SortQuality:
		sort.SliceStable(candidates, cmpBy(q.SortDir, func(i, j int) bool { return candidates[i].resource.QualityOverall < candidates[j].resource.QualityOverall }))
	case domain.SortTitle:
		sort.SliceStable(candidates, cmpBy(q.SortDir, func(i, j int) bool { return candidates[i].resource.Title < candidates[j].resource.Title }))
	default:
		// SortRelevance (or unset): RRF score desc, then quality desc, then
		// most-recently-updated, then id asc — the §4.1 tie-break chain.
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if a.fused.RRFScore != b.fused.RRFScore {
				return a.fused.RRFScore > b.fused.RRFScore
			}
			if a.resource.QualityOverall != b.resource.QualityOverall {
				return a.resource.QualityOverall > b.resource.QualityOverall
			}
			if !a.resource.UpdatedAt.Equal(b.resource.UpdatedAt) {
				return a.resource.UpdatedAt.After(b.resource.UpdatedAt)
			}
			return a.resource.ID < b.resource.ID
		})
	}
}

// cmpBy reverses less for descending order; the default (ascending) is
// returned as-is.
func cmpBy(dir domain.SortDir, less func(i, j int) bool) func(i, j int) bool {
	if dir == domain.SortDesc {
		return func(i, j int) bool { return less(j, i) }
	}
	return less
}

func (e *Engine) applyRerank(ctx context.Context, query string, candidates []candidate) []candidate {
	byID := make(map[string]candidate, len(candidates))
	rcs := make([]RerankCandidate, len(candidates))
	for i, c := range candidates {
		byID[c.resource.ID] = c
		rcs[i] = RerankCandidate{ID: c.resource.ID, Text: c.resource.Title + "\n" + c.resource.Description}
	}
	reranked := e.Reranker.Rerank(ctx, query, rcs, len(candidates))
	if len(reranked) == 0 {
		return candidates
	}
	out := make([]candidate, 0, len(reranked))
	for _, rr := range reranked {
		if c, ok := byID[rr.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}

func paginate(candidates []candidate, offset, limit int) []candidate {
	if offset >= len(candidates) {
		return nil
	}
	end := offset + limit
	if end > len(candidates) {
		end = len(candidates)
	}
	return candidates[offset:end]
}

func countContributions(fused []FusedDoc) domain.MethodContributions {
	var m domain.MethodContributions
	for _, f := range fused {
		if len(f.InLegs) > 0 && f.InLegs[0] {
			m.FTS5++
		}
		if len(f.InLegs) > 1 && f.InLegs[1] {
			m.Dense++
		}
		if len(f.InLegs) > 2 && f.InLegs[2] {
			m.Sparse++
		}
	}
	return m
}

func computeFacets(resources []*domain.Resource) domain.Facets {
	cc := map[string]int{}
	types := map[string]int{}
	langs := map[string]int{}
	statuses := map[string]int{}
	subjects := map[string]int{}
	for _, r := range resources {
		if r.ClassificationCode != "" {
			cc[r.ClassificationCode]++
		}
		if r.Type != "" {
			types[r.Type]++
		}
		if r.Language != "" {
			langs[r.Language]++
		}
		statuses[string(r.ReadStatus)]++
		for _, s := range r.Subject {
			subjects[s]++
		}
	}
	return domain.Facets{
		ClassificationCode: bucketize(cc, 0),
		Type:                bucketize(types, 0),
		Language:            bucketize(langs, 0),
		ReadStatus:          bucketize(statuses, 0),
		Subject:             bucketize(subjects, 25),
	}
}

func bucketize(counts map[string]int, top int) []domain.FacetBucket {
	out := make([]domain.FacetBucket, 0, len(counts))
	for v, n := range counts {
		out = append(out, domain.FacetBucket{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if top > 0 && len(out) > top {
		out = out[:top]
	}
	return out
}

// computeSnippets builds a short description excerpt around the first
// query-term match, falling back to the description's prefix.
func computeSnippets(items []*domain.Resource, query string) map[string]string {
	out := make(map[string]string, len(items))
	terms := strings.Fields(strings.ToLower(query))
	for _, r := range items {
		out[r.ID] = snippetFor(r.Description, terms)
	}
	return out
}

const snippetRadius = 80

func snippetFor(description string, terms []string) string {
	lower := strings.ToLower(description)
	pos := -1
	for _, t := range terms {
		if i := strings.Index(lower, t); i >= 0 && (pos == -1 || i < pos) {
			pos = i
		}
	}
	if pos == -1 {
		if len(description) <= snippetRadius*2 {
			return description
		}
		return description[:snippetRadius*2] + "…"
	}
	start := pos - snippetRadius
	if start < 0 {
		start = 0
	}
	end := pos + snippetRadius
	if end > len(description) {
		end = len(description)
	}
	prefix, suffix := "", ""
	if start > 0 {
		prefix = "…"
	}
	if end < len(description) {
		suffix = "…"
	}
	return prefix + highlightTerms(description[start:end], terms) + suffix
}

// highlightTerms wraps every case-insensitive, non-overlapping occurrence
// of a query term in <mark>...</mark>, scanning left to right and
// preferring the longest matching term at each position.
func highlightTerms(window string, terms []string) string {
	if len(terms) == 0 {
		return window
	}
	lower := strings.ToLower(window)
	var b strings.Builder
	for i := 0; i < len(window); {
		match := ""
		for _, t := range terms {
			if t == "" || len(t) <= len(match) {
				continue
			}
			if strings.HasPrefix(lower[i:], t) {
				match = t
			}
		}
		if match == "" {
			b.WriteByte(window[i])
			i++
			continue
		}
		b.WriteString("<mark>")
		b.WriteString(window[i : i+len(match)])
		b.WriteString("</mark>")
		i += len(match)
	}
	return b.String()
}
