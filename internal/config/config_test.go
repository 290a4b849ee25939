package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 60, cfg.Fusion.RRFConstant)
	require.Equal(t, 100, cfg.Rerank.TopKCap)
	require.Equal(t, 1000, cfg.EventBus.HistorySize)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Fusion, cfg.Fusion)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fusion:
  lexical_weight: 0.5
  dense_weight: 0.3
  sparse_weight: 0.2
  rrf_constant: 30
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 30, cfg.Fusion.RRFConstant)
	require.Equal(t, 0.5, cfg.Fusion.LexicalWeight)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fusion:\n  rrf_constant: 30\n"), 0o644))

	t.Setenv("NEOALEXANDRIA_RRF_CONSTANT", "45")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 45, cfg.Fusion.RRFConstant)
}

func TestValidateRejectsBadLexicalIndex(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.LexicalIndex = "elasticsearch"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeWeight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fusion.DenseWeight = -0.1
	require.Error(t, cfg.Validate())
}
