// Package search implements the three-way hybrid retrieval engine (§4.1),
// Reciprocal Rank Fusion with adaptive weighting (§4.2), and the
// cross-encoder reranker contract (§4.3). It generalizes the teacher's
// two-leg (BM25+vector) pkg/searcher/fusion.go fusion to three legs and
// corrects its fusion semantics against the original Python
// ReciprocalRankFusionService: a document absent from a leg contributes no
// summand for that leg, rather than being penalized with a synthetic
// "missing rank".
package search

import (
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/domain"
)

// DefaultRRFConstant is k in RRF(d) = Σ w_j/(k+rank_j(d)) (§4.2).
const DefaultRRFConstant = 60

// RankedList is one leg's output: doc ids in rank order (scores discarded
// for fusion purposes per §4.2).
type RankedList []string

// RRFFusion computes Reciprocal Rank Fusion over an arbitrary number of
// ranked lists (lexical, dense, sparse, or any future leg).
type RRFFusion struct {
	K   int
	log *slog.Logger
}

// NewRRFFusion builds an RRFFusion with the default k=60.
func NewRRFFusion(log *slog.Logger) *RRFFusion {
	return NewRRFFusionWithK(DefaultRRFConstant, log)
}

// NewRRFFusionWithK builds an RRFFusion with an explicit smoothing constant.
func NewRRFFusionWithK(k int, log *slog.Logger) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	if log == nil {
		log = slog.Default()
	}
	return &RRFFusion{K: k, log: log}
}

// FusedDoc is one document's fused result: its RRF score plus bookkeeping
// used for tie-breaks and method-contribution counts.
type FusedDoc struct {
	ID          string
	RRFScore    float64
	InLegs      []bool // per input list, whether the doc appeared in it
	BestLegRank int    // lowest (best) 0-based rank across legs the doc appeared in
}

// Fuse merges lists using weights (normalized per NormalizeWeights). A
// document missing from a leg contributes nothing for that leg — the
// summand is omitted, not penalized (§4.2, corrects the teacher's
// calculateMissingRank approach). Results are sorted by RRFScore
// descending, ties broken by ID ascending (callers apply the richer §4.1
// tie-break chain — quality/recency/classification-match — afterward).
func (f *RRFFusion) Fuse(lists []RankedList, weights []float64) []FusedDoc {
	if len(lists) == 0 {
		return nil
	}
	allEmpty := true
	for _, l := range lists {
		if len(l) > 0 {
			allEmpty = false
			break
		}
	}
	if allEmpty {
		return nil
	}

	w := NormalizeWeights(weights, len(lists), f.log)

	type acc struct {
		score       float64
		inLegs      []bool
		bestLegRank int
	}
	scores := make(map[string]*acc)
	order := make([]string, 0)

	for legIdx, list := range lists {
		for rank, id := range list {
			a, ok := scores[id]
			if !ok {
				a = &acc{inLegs: make([]bool, len(lists)), bestLegRank: rank}
				scores[id] = a
				order = append(order, id)
			}
			a.score += w[legIdx] / float64(f.K+rank)
			a.inLegs[legIdx] = true
			if rank < a.bestLegRank {
				a.bestLegRank = rank
			}
		}
	}

	out := make([]FusedDoc, 0, len(order))
	for _, id := range order {
		a := scores[id]
		out = append(out, FusedDoc{ID: id, RRFScore: a.score, InLegs: a.inLegs, BestLegRank: a.bestLegRank})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RRFScore != out[j].RRFScore {
			return out[i].RRFScore > out[j].RRFScore
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// TwoWayFuse implements §4.1's two-way hybrid_weight mode. Per-leg scores
// are derived from rank position, min-max normalized via NormalizeScores,
// then combined as (1-denseWeight)*lexical + denseWeight*dense -- a linear
// combination, not RRF. A document absent from a leg contributes 0 for
// that leg, the same missing-leg policy as three-way Fuse. denseWeight=0
// therefore reproduces the lexical leg's order exactly, and denseWeight=1
// the dense leg's.
func TwoWayFuse(lexical, dense RankedList, denseWeight float64) []FusedDoc {
	lexScores := rankScoreMap(lexical)
	denseScores := rankScoreMap(dense)

	seen := make(map[string]bool, len(lexical)+len(dense))
	order := make([]string, 0, len(lexical)+len(dense))
	for _, id := range lexical {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	for _, id := range dense {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}

	out := make([]FusedDoc, 0, len(order))
	for _, id := range order {
		l, inLex := lexScores[id]
		d, inDense := denseScores[id]
		out = append(out, FusedDoc{
			ID:       id,
			RRFScore: (1-denseWeight)*l + denseWeight*d,
			InLegs:   []bool{inLex, inDense, false},
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RRFScore != out[j].RRFScore {
			return out[i].RRFScore > out[j].RRFScore
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// rankScoreMap turns a rank-ordered id list into a min-max-normalized
// score map: rank 0 (best) gets the highest raw score, decaying with rank,
// then NormalizeScores scales the list into [0,1] (testable property 3).
func rankScoreMap(list RankedList) map[string]float64 {
	m := make(map[string]float64, len(list))
	if len(list) == 0 {
		return m
	}
	raw := make([]float64, len(list))
	for i := range list {
		raw[i] = 1.0 / float64(1+i)
	}
	norm := NormalizeScores(raw)
	for i, id := range list {
		m[id] = norm[i]
	}
	return m
}

// NormalizeWeights implements the §4.2 weight-validation rules: missing
// weights, length mismatches, and all-zero weights all fall back to equal
// weights (with a warning log for the latter two); otherwise weights are
// scaled to sum to 1. Testable property 1.
func NormalizeWeights(weights []float64, n int, log *slog.Logger) []float64 {
	if log == nil {
		log = slog.Default()
	}
	if weights == nil {
		return equalWeights(n)
	}
	if len(weights) != n {
		log.Warn("fusion: weights length mismatch, using equal weights", "got", len(weights), "want", n)
		return equalWeights(n)
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		log.Warn("fusion: all-zero (or negative-sum) weights, using equal weights")
		return equalWeights(n)
	}
	out := make([]float64, n)
	for i, w := range weights {
		out[i] = w / sum
	}
	return out
}

func equalWeights(n int) []float64 {
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	eq := 1.0 / float64(n)
	for i := range out {
		out[i] = eq
	}
	return out
}

// --- Adaptive weighting (§4.2), grounded 1:1 on original_source's
// ReciprocalRankFusionService.adaptive_weights. ---

var (
	questionStarters = []string{"who", "what", "when", "where", "why", "how"}

	codeKeywordPattern = regexp.MustCompile(`(?i)\b(def|class|function|var|let|const|import|from|return)\b`)
	codeBracketPattern = regexp.MustCompile(`[(){}\[\]]`)
	codeOperatorPattern = regexp.MustCompile(`[=<>!]+`)
	codeMethodCallPattern = regexp.MustCompile(`\b\w+\.\w+\b`)
	codeFuncCallPattern   = regexp.MustCompile(`\b\w+\(\)`)

	mathOperatorPattern = regexp.MustCompile(`[+\-*/^=]`)
	mathTermPattern     = regexp.MustCompile(`(?i)\b(sum|integral|derivative|equation|formula)\b`)
	mathSymbolPattern   = regexp.MustCompile(`[∫∑∏√∂∇]`)
)

// AdaptiveWeights computes [w_lex, w_dense, w_sparse] from query features
// per the §4.2 rule table, starting from [1,1,1] and normalizing at the
// end. Empty query returns equal weights. Testable property 2.
func AdaptiveWeights(query string) domain.Weights {
	q := strings.TrimSpace(query)
	if q == "" {
		return domain.Weights{Lexical: 1.0 / 3, Dense: 1.0 / 3, Sparse: 1.0 / 3}
	}

	lex, dense, sparse := 1.0, 1.0, 1.0

	words := strings.Fields(q)
	wordCount := len(words)

	switch {
	case wordCount <= 3:
		lex *= 1.5
		dense *= 0.8
	case wordCount > 10:
		dense *= 1.5
		lex *= 0.8
	}

	lowered := strings.ToLower(q)
	for _, qw := range questionStarters {
		if strings.HasPrefix(lowered, qw) {
			dense *= 1.3
			break
		}
	}

	if isCodeQuery(q) || isMathQuery(q) {
		sparse *= 1.5
		dense *= 0.9
	}

	sum := lex + dense + sparse
	if sum <= 0 {
		return domain.Weights{Lexical: 1.0 / 3, Dense: 1.0 / 3, Sparse: 1.0 / 3}
	}
	return domain.Weights{Lexical: lex / sum, Dense: dense / sum, Sparse: sparse / sum}
}

func isCodeQuery(q string) bool {
	return codeKeywordPattern.MatchString(q) ||
		codeBracketPattern.MatchString(q) ||
		codeOperatorPattern.MatchString(q) ||
		codeMethodCallPattern.MatchString(q) ||
		codeFuncCallPattern.MatchString(q)
}

func isMathQuery(q string) bool {
	return mathOperatorPattern.MatchString(q) ||
		mathTermPattern.MatchString(q) ||
		mathSymbolPattern.MatchString(q)
}

// NormalizeScores min-max scales raw scores into [0,1]; if all raw scores
// are equal, every normalized output is 1 (testable property 3).
func NormalizeScores(raw []float64) []float64 {
	out := make([]float64, len(raw))
	if len(raw) == 0 {
		return out
	}
	min, max := raw[0], raw[0]
	for _, v := range raw {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max == min {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	span := max - min
	for i, v := range raw {
		out[i] = (v - min) / span
	}
	return out
}

// CosineSimilarity computes qv·rv/(|qv|·|rv|). Per §4.1 numerical edge
// cases: zero-norm vectors and dimension mismatches yield 0, never an
// error (testable property 4).
func CosineSimilarity(qv, rv []float32) float64 {
	if len(qv) != len(rv) || len(qv) == 0 {
		return 0
	}
	var dot, qNorm, rNorm float64
	for i := range qv {
		q, r := float64(qv[i]), float64(rv[i])
		dot += q * r
		qNorm += q * q
		rNorm += r * r
	}
	if qNorm == 0 || rNorm == 0 {
		return 0
	}
	return dot / (math.Sqrt(qNorm) * math.Sqrt(rNorm))
}
