package eventbus

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/domain"
)

func TestDumpHistoryRoundTrips(t *testing.T) {
	bus := newTestBus()
	bus.Emit("resource.created", map[string]any{"id": "r1"}, domain.PriorityNormal)
	bus.Emit("resource.updated", map[string]any{"id": "r1"}, domain.PriorityHigh)

	path := filepath.Join(t.TempDir(), "history.db")
	require.NoError(t, bus.DumpHistory(path))

	entries, err := LoadHistoryDump(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "resource.created", entries[0].Name)
	require.Equal(t, "resource.updated", entries[1].Name)
}

func TestDumpHistoryOnEmptyBusProducesNoEntries(t *testing.T) {
	bus := newTestBus()
	path := filepath.Join(t.TempDir(), "empty.db")
	require.NoError(t, bus.DumpHistory(path))

	entries, err := LoadHistoryDump(path)
	require.NoError(t, err)
	require.Empty(t, entries)
}
