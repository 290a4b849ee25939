// Package validation provides a golden-query regression harness for the
// hybrid search pipeline. It loads a data-driven query set from
// testdata/queries.yaml (query text plus the resource IDs that should
// appear near the top) and runs them against a live search.Engine, the
// same way a library operator would sanity-check a reindex. Grounded on
// the teacher's dogfooding validation harness, redirected from
// file-path/MCP-tool expectations to resource-ID/search.Engine ones.
package validation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/domain"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/search"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/searchmetrics"
)

// QuerySpec defines a golden query with the resource IDs expected to rank
// near the top of its results.
type QuerySpec struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Query    string   `yaml:"query"`
	Expected []string `yaml:"expected"`
	Notes    string   `yaml:"notes"`
	Tier     int      `yaml:"-"`
}

// QueryConfig holds all validation queries loaded from YAML.
type QueryConfig struct {
	Tier1    []QuerySpec `yaml:"tier1"`
	Tier2    []QuerySpec `yaml:"tier2"`
	Negative []QuerySpec `yaml:"negative"`
}

var (
	queriesOnce sync.Once
	queriesData *QueryConfig
	queriesErr  error
)

// LoadQueries loads validation queries from testdata/queries.yaml, caching
// the result after first load.
func LoadQueries() (*QueryConfig, error) {
	queriesOnce.Do(func() {
		_, filename, _, ok := runtime.Caller(0)
		if !ok {
			queriesErr = fmt.Errorf("failed to get current file path")
			return
		}

		dir := filepath.Dir(filename)
		path := filepath.Join(dir, "testdata", "queries.yaml")

		data, err := os.ReadFile(path)
		if err != nil {
			queriesErr = fmt.Errorf("failed to read queries file %s: %w", path, err)
			return
		}

		var cfg QueryConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			queriesErr = fmt.Errorf("failed to parse queries YAML: %w", err)
			return
		}

		for i := range cfg.Tier1 {
			cfg.Tier1[i].Tier = 1
		}
		for i := range cfg.Tier2 {
			cfg.Tier2[i].Tier = 2
		}
		for i := range cfg.Negative {
			cfg.Negative[i].Tier = 0
		}

		queriesData = &cfg
	})

	return queriesData, queriesErr
}

// ResetQueries clears the cached queries (for testing).
func ResetQueries() {
	queriesOnce = sync.Once{}
	queriesData = nil
	queriesErr = nil
}

// TestResult captures the outcome of a single query test.
type TestResult struct {
	Spec      QuerySpec     `json:"spec"`
	Passed    bool          `json:"passed"`
	Duration  float64       `json:"duration_ms"`
	TopIDs    []string      `json:"top_ids"`
	MatchedAt int           `json:"matched_at"` // position of first expected ID, -1 if absent
	NDCG      float64       `json:"ndcg"`
	Error     string        `json:"error,omitempty"`
}

// ValidationResult captures the outcome of a full validation run.
type ValidationResult struct {
	Timestamp  time.Time    `json:"timestamp"`
	Tier1      []TestResult `json:"tier1"`
	Tier2      []TestResult `json:"tier2"`
	Negative   []TestResult `json:"negative"`
	Tier1Pass  int          `json:"tier1_pass"`
	Tier1Total int          `json:"tier1_total"`
	Tier2Pass  int          `json:"tier2_pass"`
	Tier2Total int          `json:"tier2_total"`
	NegPass    int          `json:"negative_pass"`
	NegTotal   int          `json:"negative_total"`
}

// Validator runs golden queries against a search.Engine.
type Validator struct {
	engine *search.Engine
}

// NewValidator wraps an already-constructed search engine (built by the
// caller from a live store.DB, since index construction is main's job, not
// the harness's).
func NewValidator(engine *search.Engine) *Validator {
	return &Validator{engine: engine}
}

// RunQuery executes a single golden query and scores its result list.
func (v *Validator) RunQuery(ctx context.Context, spec QuerySpec) TestResult {
	start := time.Now()
	result := TestResult{Spec: spec, MatchedAt: -1}

	res, err := v.engine.Search(ctx, domain.Query{Text: spec.Query, Limit: 10})
	result.Duration = float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		if spec.Tier == 0 {
			result.Passed = true
		} else {
			result.Error = err.Error()
		}
		return result
	}

	for _, item := range res.Items {
		result.TopIDs = append(result.TopIDs, item.ID)
	}

	if len(spec.Expected) == 0 {
		result.Passed = true
		return result
	}

	result.Passed, result.MatchedAt = checkExpected(result.TopIDs, spec.Expected)
	judgments := make(searchmetrics.Judgments, len(spec.Expected))
	for _, id := range spec.Expected {
		judgments[id] = 1
	}
	result.NDCG = searchmetrics.NDCGAtK(result.TopIDs, judgments, len(result.TopIDs))
	return result
}

// RunAll executes every tier of golden queries and returns a full report.
func (v *Validator) RunAll(ctx context.Context) *ValidationResult {
	result := &ValidationResult{Timestamp: time.Now()}

	for _, spec := range Tier1Queries() {
		tr := v.RunQuery(ctx, spec)
		result.Tier1 = append(result.Tier1, tr)
		result.Tier1Total++
		if tr.Passed {
			result.Tier1Pass++
		}
	}

	for _, spec := range Tier2Queries() {
		tr := v.RunQuery(ctx, spec)
		result.Tier2 = append(result.Tier2, tr)
		result.Tier2Total++
		if tr.Passed {
			result.Tier2Pass++
		}
	}

	for _, spec := range NegativeQueries() {
		tr := v.RunQuery(ctx, spec)
		result.Negative = append(result.Negative, tr)
		result.NegTotal++
		if tr.Passed {
			result.NegPass++
		}
	}

	return result
}

// Tier1Queries returns the standard Tier 1 validation queries.
func Tier1Queries() []QuerySpec {
	cfg, err := LoadQueries()
	if err != nil {
		return nil
	}
	return cfg.Tier1
}

// Tier2Queries returns the Tier 2 validation queries.
func Tier2Queries() []QuerySpec {
	cfg, err := LoadQueries()
	if err != nil {
		return nil
	}
	return cfg.Tier2
}

// NegativeQueries returns queries that should degrade gracefully (typos,
// empty strings, adversarial input) rather than error or crash.
func NegativeQueries() []QuerySpec {
	cfg, err := LoadQueries()
	if err != nil {
		return nil
	}
	return cfg.Negative
}

// checkExpected reports whether any expected ID appears in results, and at
// what position.
func checkExpected(results []string, expected []string) (bool, int) {
	for i, id := range results {
		for _, exp := range expected {
			if id == exp {
				return true, i
			}
		}
	}
	return false, -1
}
