package search

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RerankCandidate is one document offered to the reranker: its id and the
// text the cross-encoder scores.
type RerankCandidate struct {
	ID   string
	Text string
}

// Reranked is one document after cross-encoder scoring.
type Reranked struct {
	ID    string
	Score float64
}

// CrossEncoder scores (query, doc) pairs. Implementations wrap whatever
// inference runtime actually hosts the cross-encoder model; this interface
// is the seam the reranker's failure-handling logic is written against,
// grounded on original_source's RerankingService contract.
type CrossEncoder interface {
	// Score returns one score per candidate, query-relevance descending
	// order not guaranteed — the Reranker sorts. device is "gpu" or "cpu";
	// ErrOutOfMemory signals the caller should retry on "cpu".
	Score(ctx context.Context, query string, candidates []RerankCandidate, device string) ([]float64, error)
}

// ErrOutOfMemory is returned by a CrossEncoder.Score call that exhausted
// device memory; Reranker retries once on CPU before giving up.
var ErrOutOfMemory = fmt.Errorf("cross-encoder: out of memory")

// Reranker implements §4.3's cross-encoder contract: GPU OOM retries once
// on CPU, a second failure or a timeout returns an empty result (never an
// error — reranking is a best-effort refinement of already-fused results),
// and successful results are cached in the Reranker's own LRU (built by
// NewReranker) keyed on
// md5(query|sorted(ids)|top_k), matching reranking_service.py's
// _cache_key.
type Reranker struct {
	model   CrossEncoder
	cache   *lru.Cache[string, []Reranked]
	timeout time.Duration
	log     *slog.Logger
}

// NewReranker wraps model with an LRU result cache of the given size and a
// per-call timeout.
func NewReranker(model CrossEncoder, cacheSize int, timeout time.Duration, log *slog.Logger) (*Reranker, error) {
	if cacheSize <= 0 {
		cacheSize = 1000
	}
	cache, err := lru.New[string, []Reranked](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("reranker: build cache: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reranker{model: model, cache: cache, timeout: timeout, log: log}, nil
}

// CacheKey computes reranking_service.py's cache key: md5 of the query and
// sorted candidate ids and top_k, so result order of candidates doesn't
// fragment the cache.
func CacheKey(query string, ids []string, topK int) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	payload := query + "|" + strings.Join(sorted, ",") + fmt.Sprintf("|%d", topK)
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Rerank scores candidates against query and returns the top_k best,
// descending by score. On any failure path (OOM on both devices, or
// timeout) it returns an empty, non-error result — callers fall back to
// the pre-rerank fused order.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []RerankCandidate, topK int) []Reranked {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	key := CacheKey(query, ids, topK)
	if cached, ok := r.cache.Get(key); ok {
		return cached
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if r.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	scores, err := r.model.Score(callCtx, query, candidates, "gpu")
	if err != nil {
		if callCtx.Err() != nil {
			r.log.Warn("reranker: timeout exceeded, returning empty result", "query_len", len(query))
			return nil
		}
		if err == ErrOutOfMemory {
			r.log.Warn("reranker: gpu oom, retrying on cpu")
			scores, err = r.model.Score(callCtx, query, candidates, "cpu")
			if err != nil {
				r.log.Warn("reranker: cpu retry failed, returning empty result", "error", err)
				return nil
			}
		} else {
			r.log.Warn("reranker: scoring failed, returning empty result", "error", err)
			return nil
		}
	}

	out := make([]Reranked, len(candidates))
	for i, c := range candidates {
		out[i] = Reranked{ID: c.ID, Score: scores[i]}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if topK > 0 && topK < len(out) {
		out = out[:topK]
	}
	r.cache.Add(key, out)
	return out
}

// NoOpReranker passes candidates through unscored, in their given order.
// Used when reranking is disabled (config.RerankConfig.Enabled = false).
type NoOpReranker struct{}

// Rerank returns candidates unchanged, truncated to topK.
func (NoOpReranker) Rerank(_ context.Context, _ string, candidates []RerankCandidate, topK int) []Reranked {
	out := make([]Reranked, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Reranked{ID: c.ID, Score: 0})
	}
	if topK > 0 && topK < len(out) {
		out = out[:topK]
	}
	return out
}
