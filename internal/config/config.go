// Package config loads layered configuration for the search/taxonomy/bus
// core: built-in defaults, an optional YAML file, then environment
// variables, in that precedence order — the same three-tier layering the
// teacher repo uses for its project config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FusionConfig holds the RRF and adaptive-weighting parameters (§4.2).
type FusionConfig struct {
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight"`
	DenseWeight   float64 `yaml:"dense_weight" json:"dense_weight"`
	SparseWeight  float64 `yaml:"sparse_weight" json:"sparse_weight"`
	RRFConstant   int     `yaml:"rrf_constant" json:"rrf_constant"`
}

// DefaultFusionConfig returns the equal-thirds baseline fusion weights with
// k=60, matching spec.md §4.2's adaptive-weighting starting point.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		LexicalWeight: 1.0 / 3,
		DenseWeight:   1.0 / 3,
		SparseWeight:  1.0 / 3,
		RRFConstant:   60,
	}
}

// RerankConfig holds cross-encoder reranker settings (§4.3).
type RerankConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ModelName  string `yaml:"model_name" json:"model_name"`
	TopKCap    int    `yaml:"top_k_cap" json:"top_k_cap"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
	MaxDocChars int   `yaml:"max_doc_chars" json:"max_doc_chars"`
}

// DefaultRerankConfig resolves the §9 open question: rerank_top_k is
// min(limit, rerank_top_k_cap) with a cap of 100.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		Enabled:     false,
		ModelName:   "cross-encoder/ms-marco-MiniLM-L-6-v2",
		TopKCap:     100,
		CacheSize:   1000,
		MaxDocChars: 500,
	}
}

// EventBusConfig holds bus sizing (§4.5).
type EventBusConfig struct {
	HistorySize       int `yaml:"history_size" json:"history_size"`
	LatencyWindowSize int `yaml:"latency_window_size" json:"latency_window_size"`
	SlowHandlerMS     int `yaml:"slow_handler_ms" json:"slow_handler_ms"`
}

// DefaultEventBusConfig returns the spec's bounded ring of 1000 (§4.5).
func DefaultEventBusConfig() EventBusConfig {
	return EventBusConfig{
		HistorySize:       1000,
		LatencyWindowSize: 1000,
		SlowHandlerMS:     100,
	}
}

// AuthorityConfig holds authority/taxonomy service defaults (§4.6).
type AuthorityConfig struct {
	SynonymsPath      string `yaml:"synonyms_path" json:"synonyms_path"`
	MaxSuggestions    int    `yaml:"max_suggestions" json:"max_suggestions"`
	MaxSubjectFacets  int    `yaml:"max_subject_facets" json:"max_subject_facets"`
}

// DefaultAuthorityConfig returns the suggestion/facet caps from §4.1/§4.6.
func DefaultAuthorityConfig() AuthorityConfig {
	return AuthorityConfig{
		MaxSuggestions:   10,
		MaxSubjectFacets: 25,
	}
}

// StoreConfig holds the persistence backend selection.
type StoreConfig struct {
	DriverDSN    string `yaml:"driver_dsn" json:"driver_dsn"`
	LexicalIndex string `yaml:"lexical_index" json:"lexical_index"` // "sqlite-fts5"
}

// DefaultStoreConfig returns an in-memory SQLite-backed store, matching the
// teacher's SQLiteBM25Index ":memory:" convenience mode.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		DriverDSN:    ":memory:",
		LexicalIndex: "sqlite-fts5",
	}
}

// Config is the root configuration object.
type Config struct {
	Fusion    FusionConfig    `yaml:"fusion" json:"fusion"`
	Rerank    RerankConfig    `yaml:"rerank" json:"rerank"`
	EventBus  EventBusConfig  `yaml:"event_bus" json:"event_bus"`
	Authority AuthorityConfig `yaml:"authority" json:"authority"`
	Store     StoreConfig     `yaml:"store" json:"store"`
	LogLevel  string          `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns the built-in baseline, tier 1 of the 3-tier layering.
func DefaultConfig() *Config {
	return &Config{
		Fusion:    DefaultFusionConfig(),
		Rerank:    DefaultRerankConfig(),
		EventBus:  DefaultEventBusConfig(),
		Authority: DefaultAuthorityConfig(),
		Store:     DefaultStoreConfig(),
		LogLevel:  "info",
	}
}

// Load resolves configuration with the teacher's 3-tier precedence:
// defaults -> YAML file at path (if non-empty and present) -> environment
// variable overrides. Validate() runs at the end.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			fileCfg, err := loadYAML(path)
			if err != nil {
				return nil, fmt.Errorf("config: loading %s: %w", path, err)
			}
			cfg.mergeWith(fileCfg)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	return &cfg, nil
}

// mergeWith overlays sections of other onto cfg, the same selective-merge
// idiom the teacher's config loader uses for project config over defaults.
// A section replaces the default one whole when its key field is set
// (fusion.rrf_constant, rerank.model_name, event_bus.history_size,
// authority.max_suggestions, store.driver_dsn); fields left out of a
// replaced section take their zero values, and a section whose key field
// is unset is ignored entirely.
func (cfg *Config) mergeWith(other *Config) {
	if other == nil {
		return
	}
	if other.Fusion.RRFConstant != 0 {
		cfg.Fusion = other.Fusion
	}
	if other.Rerank.ModelName != "" {
		cfg.Rerank = other.Rerank
	}
	if other.EventBus.HistorySize != 0 {
		cfg.EventBus = other.EventBus
	}
	if other.Authority.MaxSuggestions != 0 {
		cfg.Authority = other.Authority
	}
	if other.Store.DriverDSN != "" {
		cfg.Store = other.Store
	}
	if other.LogLevel != "" {
		cfg.LogLevel = other.LogLevel
	}
}

// envPrefix namespaces environment variable overrides.
const envPrefix = "NEOALEXANDRIA_"

// applyEnvOverrides reads NEOALEXANDRIA_* environment variables, the same
// mechanism (and prefix pattern) as the teacher's AMANMCP_* overrides.
func (cfg *Config) applyEnvOverrides() {
	if v := os.Getenv(envPrefix + "RRF_CONSTANT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Fusion.RRFConstant = n
		}
	}
	if v := os.Getenv(envPrefix + "LEXICAL_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Fusion.LexicalWeight = f
		}
	}
	if v := os.Getenv(envPrefix + "DENSE_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Fusion.DenseWeight = f
		}
	}
	if v := os.Getenv(envPrefix + "SPARSE_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Fusion.SparseWeight = f
		}
	}
	if v := os.Getenv(envPrefix + "RERANK_ENABLED"); v != "" {
		cfg.Rerank.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv(envPrefix + "RERANK_TOP_K_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Rerank.TopKCap = n
		}
	}
	if v := os.Getenv(envPrefix + "EVENT_BUS_HISTORY_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EventBus.HistorySize = n
		}
	}
	if v := os.Getenv(envPrefix + "STORE_DSN"); v != "" {
		cfg.Store.DriverDSN = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate checks range/enum invariants on the resolved config.
func (cfg *Config) Validate() error {
	if cfg.Fusion.RRFConstant <= 0 {
		return fmt.Errorf("config: fusion.rrf_constant must be positive, got %d", cfg.Fusion.RRFConstant)
	}
	for name, w := range map[string]float64{
		"lexical_weight": cfg.Fusion.LexicalWeight,
		"dense_weight":   cfg.Fusion.DenseWeight,
		"sparse_weight":  cfg.Fusion.SparseWeight,
	} {
		if w < 0 {
			return fmt.Errorf("config: fusion.%s must be >= 0, got %f", name, w)
		}
	}
	if cfg.Rerank.TopKCap <= 0 {
		return fmt.Errorf("config: rerank.top_k_cap must be positive, got %d", cfg.Rerank.TopKCap)
	}
	if cfg.EventBus.HistorySize <= 0 {
		return fmt.Errorf("config: event_bus.history_size must be positive, got %d", cfg.EventBus.HistorySize)
	}
	switch cfg.Store.LexicalIndex {
	case "sqlite-fts5":
	default:
		return fmt.Errorf("config: store.lexical_index must be sqlite-fts5, got %q", cfg.Store.LexicalIndex)
	}
	return nil
}

// WriteYAML persists cfg to path, matching the teacher's WriteYAML helper.
func WriteYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
