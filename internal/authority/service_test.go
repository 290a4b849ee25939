package authority

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/config"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc, err := NewService(db, config.DefaultAuthorityConfig())
	require.NoError(t, err)
	return svc
}

func TestNormalizeSubject_BuiltinSynonym(t *testing.T) {
	svc := newTestService(t)

	got, err := svc.NormalizeSubject("ml")
	require.NoError(t, err)
	require.Equal(t, "Machine Learning", got)

	got, err = svc.NormalizeSubject("  AI ")
	require.NoError(t, err)
	require.Equal(t, "Artificial Intelligence", got)
}

func TestNormalizeSubject_FallsBackToTitleCase(t *testing.T) {
	svc := newTestService(t)

	got, err := svc.NormalizeSubject("quantum computing")
	require.NoError(t, err)
	require.Equal(t, "Quantum Computing", got)
}

func TestNormalizeSubject_ReusesStoredVariant(t *testing.T) {
	svc := newTestService(t)

	first, err := svc.NormalizeSubject("Quantum Computing")
	require.NoError(t, err)
	require.Equal(t, "Quantum Computing", first)

	// A differently-cased variant of an already-persisted canonical should
	// resolve to the same canonical via the authority-store lookup path.
	second, err := svc.NormalizeSubject("quantum   computing")
	require.NoError(t, err)
	require.Equal(t, "Quantum Computing", second)
}

func TestNormalizeSubject_EmptyInput(t *testing.T) {
	svc := newTestService(t)
	got, err := svc.NormalizeSubject("   ")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestNormalizeCreator(t *testing.T) {
	svc := newTestService(t)
	got, err := svc.NormalizeCreator("Doe, Jane")
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", got)
}

func TestNormalizePublisher(t *testing.T) {
	svc := newTestService(t)
	got, err := svc.NormalizePublisher("  oreilly media  ")
	require.NoError(t, err)
	require.Equal(t, "Oreilly Media", got)
}

func TestSuggestSubjects_IncludesBuiltinAndStored(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.NormalizeSubject("machine vision systems")
	require.NoError(t, err)

	suggestions, err := svc.SuggestSubjects("mach")
	require.NoError(t, err)
	require.Contains(t, suggestions, "Machine Learning")
	require.Contains(t, suggestions, "Machine Vision Systems")
}

func TestSuggestSubjects_RespectsLimit(t *testing.T) {
	cfg := config.DefaultAuthorityConfig()
	cfg.MaxSuggestions = 1

	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	svc, err := NewService(db, cfg)
	require.NoError(t, err)

	suggestions, err := svc.SuggestSubjects("a")
	require.NoError(t, err)
	require.LessOrEqual(t, len(suggestions), 1)
}
