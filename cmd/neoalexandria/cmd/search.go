package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/coreapi"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/domain"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/output"
)

// searchOptions holds CLI flags for the search command, following the
// teacher's searchOptions convention (cmd/amanmcp/cmd/search.go).
type searchOptions struct {
	limit        int
	offset       int
	types        []string
	languages    []string
	sortBy       string
	hybridWeight float64
	useHybrid    bool
	rerank       bool
	adaptive     bool
	three        bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search resources with the three-way hybrid engine",
		Long: `Runs the full search pipeline: structured mode (no query text) lists,
filters, sorts, and paginates the corpus directly; relevance mode fuses
the lexical, dense, and sparse retrieval legs with Reciprocal Rank Fusion
(or, with --hybrid-weight, a two-way lexical/dense blend).`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 25, "maximum number of results")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "result offset for pagination")
	cmd.Flags().StringSliceVarP(&opts.types, "type", "t", nil, "filter by resource type (repeatable)")
	cmd.Flags().StringSliceVarP(&opts.languages, "language", "l", nil, "filter by language (repeatable)")
	cmd.Flags().StringVar(&opts.sortBy, "sort-by", "relevance", "relevance|updated_at|created_at|quality_score|title")
	cmd.Flags().Float64Var(&opts.hybridWeight, "hybrid-weight", 0, "two-way dense weight in [0,1] (requires --hybrid)")
	cmd.Flags().BoolVar(&opts.useHybrid, "hybrid", false, "use --hybrid-weight's two-way mode instead of three-way RRF")
	cmd.Flags().BoolVar(&opts.rerank, "rerank", false, "apply the cross-encoder reranker")
	cmd.Flags().BoolVar(&opts.adaptive, "adaptive", false, "derive fusion weights from query features (§4.2)")
	cmd.Flags().BoolVar(&opts.three, "compare", false, "show each retrieval leg's standalone ranking (GET /search/compare-methods)")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	out := output.New(cmd.OutOrStdout())

	if opts.three {
		cmp, err := current.core.CompareMethods(cmd.Context(), query, opts.limit)
		if err != nil {
			return fmt.Errorf("compare-methods failed: %w", err)
		}
		return formatComparison(out, cmp)
	}

	q := domain.Query{
		Text:   query,
		Limit:  opts.limit,
		Offset: opts.offset,
		Filters: domain.Filters{
			Type:     opts.types,
			Language: opts.languages,
		},
		SortBy:            domain.SortBy(opts.sortBy),
		EnableReranking:   opts.rerank,
		AdaptiveWeighting: opts.adaptive,
	}
	if opts.useHybrid {
		w := opts.hybridWeight
		q.HybridWeight = &w
	}

	res, err := current.core.Search(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return formatResults(out, query, res)
}

func formatResults(out *output.Writer, query string, res *domain.SearchResults) error {
	if res.Total == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", query))
		return nil
	}

	out.Statusf("", "Found %d results for %q (%.2fms):", res.Total, query, res.LatencyMS)
	out.Newline()
	for i, r := range res.Items {
		out.Statusf("", "%d. %s (%s)", i+1, r.Title, r.ID)
		if snippet, ok := res.Snippets[r.ID]; ok && snippet != "" {
			out.Status("", "   "+snippet)
		}
	}
	out.Newline()
	out.Status("", fmt.Sprintf("weights: lexical=%.2f dense=%.2f sparse=%.2f",
		res.WeightsUsed.Lexical, res.WeightsUsed.Dense, res.WeightsUsed.Sparse))
	return nil
}

func formatComparison(out *output.Writer, cmp *coreapi.MethodComparison) error {
	out.Statusf("", "Method comparison for %q:", cmp.Query)
	out.Newline()
	for _, m := range cmp.Results {
		out.Statusf("", "%s (%.2fms): %s", m.Method, m.LatencyMS, strings.Join(m.IDs, ", "))
	}
	return nil
}
