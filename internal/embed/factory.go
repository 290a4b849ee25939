package embed

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// ProviderType represents an embedding provider.
type ProviderType string

// ProviderOllama is the only supported provider: the MLX (Apple-silicon
// native) and static hash-based fallback providers the teacher supported
// have no home in this service's domain (see DESIGN.md) and were dropped.
const ProviderOllama ProviderType = "ollama"

// NewEmbedder creates an Ollama-backed embedder, wrapped in an LRU query
// cache unless disabled via NEOALEXANDRIA_EMBED_CACHE=false.
func NewEmbedder(ctx context.Context, model string) (Embedder, error) {
	embedder, err := newOllamaEmbedder(ctx, model)
	if err != nil {
		return nil, err
	}
	if !isCacheDisabled() {
		embedder = NewCachedEmbedderWithDefaults(embedder)
	}
	return embedder, nil
}

func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("NEOALEXANDRIA_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

func newOllamaEmbedder(ctx context.Context, model string) (Embedder, error) {
	cfg := DefaultOllamaConfig()
	if model != "" {
		cfg.Model = model
	}
	if host := os.Getenv("NEOALEXANDRIA_OLLAMA_HOST"); host != "" {
		cfg.Host = host
	}
	if modelOverride := os.Getenv("NEOALEXANDRIA_OLLAMA_MODEL"); modelOverride != "" {
		cfg.Model = modelOverride
	}
	if timeoutStr := os.Getenv("NEOALEXANDRIA_OLLAMA_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.Timeout = timeout
		}
	}

	embedder, err := NewOllamaEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding provider unavailable: %w (start Ollama with `ollama serve`)", err)
	}
	return embedder, nil
}

// EmbedderInfo describes a resolved embedder for diagnostics endpoints.
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo inspects an embedder, unwrapping a CachedEmbedder if present.
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.inner
	}
	return EmbedderInfo{
		Provider:   ProviderOllama,
		Model:      inner.ModelName(),
		Dimensions: inner.Dimensions(),
		Available:  embedder.Available(ctx),
	}
}

// MustNewEmbedder creates an embedder and panics on failure; for
// initialization paths where a missing embedder is a startup-fatal error.
func MustNewEmbedder(ctx context.Context, model string) Embedder {
	embedder, err := NewEmbedder(ctx, model)
	if err != nil {
		panic(fmt.Sprintf("failed to create embedder: %v", err))
	}
	return embedder
}
