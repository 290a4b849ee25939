// Package searchmetrics implements the search-quality evaluation functions
// (§4.4): nDCG@k, Recall@k, Precision@k, and MRR. All four are pure
// functions of a ranked id list and a judgments map, grounded on the
// formulas in spec.md §4.4; the container shape (one struct per evaluation)
// follows the teacher's internal/telemetry/query_metrics.go convention of
// bundling related scores into a single result type.
package searchmetrics

import (
	"math"
	"sort"
)

// Judgments maps a doc id to a relevance grade in [0,3] (0 = not judged).
type Judgments map[string]int

// EvaluationMetrics bundles the four §4.4 metrics for one query, matching
// the §6 EvaluationMetrics response shape.
type EvaluationMetrics struct {
	NDCG      float64
	Recall    float64
	Precision float64
	MRR       float64
}

// DCG computes Σ_{i=0}^{k-1} (2^rel_i - 1) / log2(i+2) over the first k
// ids of ranked, defaulting unjudged ids to relevance 0.
func DCG(ranked []string, judgments Judgments, k int) float64 {
	if k > len(ranked) {
		k = len(ranked)
	}
	var sum float64
	for i := 0; i < k; i++ {
		rel := judgments[ranked[i]]
		sum += (math.Pow(2, float64(rel)) - 1) / math.Log2(float64(i)+2)
	}
	return sum
}

// IDCG computes DCG@k for the ideal ranking: judged values sorted
// descending, padded with zeros.
func IDCG(judgments Judgments, k int) float64 {
	vals := make([]int, 0, len(judgments))
	for _, v := range judgments {
		vals = append(vals, v)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(vals)))
	if k > len(vals) {
		k = len(vals)
	}
	var sum float64
	for i := 0; i < k; i++ {
		sum += (math.Pow(2, float64(vals[i])) - 1) / math.Log2(float64(i)+2)
	}
	return sum
}

// NDCGAtK computes nDCG@k = DCG@k / IDCG@k, 0 if IDCG@k = 0.
// Testable property 6: NDCGAtK is always in [0,1].
func NDCGAtK(ranked []string, judgments Judgments, k int) float64 {
	idcg := IDCG(judgments, k)
	if idcg == 0 {
		return 0
	}
	return DCG(ranked, judgments, k) / idcg
}

// RecallAtK computes |top_k ∩ relevant| / |relevant|; relevant = ids with
// judgments[id] > 0. 0 if there are no relevant ids.
func RecallAtK(ranked []string, judgments Judgments, k int) float64 {
	relevant := countRelevant(judgments)
	if relevant == 0 {
		return 0
	}
	hits := intersectTopK(ranked, judgments, k)
	return float64(hits) / float64(relevant)
}

// PrecisionAtK computes |top_k ∩ relevant| / k; 0 if k = 0.
func PrecisionAtK(ranked []string, judgments Judgments, k int) float64 {
	if k == 0 {
		return 0
	}
	hits := intersectTopK(ranked, judgments, k)
	return float64(hits) / float64(k)
}

// MRR computes 1/rank_of_first_relevant (1-based), 0 if none is relevant.
func MRR(ranked []string, judgments Judgments) float64 {
	for i, id := range ranked {
		if judgments[id] > 0 {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// Evaluate bundles all four metrics at k, matching POST /search/evaluate.
func Evaluate(ranked []string, judgments Judgments, k int) EvaluationMetrics {
	return EvaluationMetrics{
		NDCG:      NDCGAtK(ranked, judgments, k),
		Recall:    RecallAtK(ranked, judgments, k),
		Precision: PrecisionAtK(ranked, judgments, k),
		MRR:       MRR(ranked, judgments),
	}
}

func countRelevant(judgments Judgments) int {
	n := 0
	for _, v := range judgments {
		if v > 0 {
			n++
		}
	}
	return n
}

func intersectTopK(ranked []string, judgments Judgments, k int) int {
	if k > len(ranked) {
		k = len(ranked)
	}
	hits := 0
	for i := 0; i < k; i++ {
		if judgments[ranked[i]] > 0 {
			hits++
		}
	}
	return hits
}
