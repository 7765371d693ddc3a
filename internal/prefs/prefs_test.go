package prefs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/ledgerview/internal/ledger"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "prefs.json")

	p, err := Load(path)
	require.NoError(t, err)
	require.Zero(t, p.PageSize)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := ledger.TransactionFilters{Type: ledger.Withdrawal, Start: start, Actor: "John Doe"}
	require.NoError(t, Save(path, Prefs{PageSize: 25, Filters: FromFilters(f)}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 25, got.PageSize)
	back := got.Filters.Ledger()
	require.Equal(t, ledger.Withdrawal, back.Type)
	require.True(t, back.Start.Equal(start))
	require.True(t, back.End.IsZero())
	require.Equal(t, "John Doe", back.Actor)
}

func TestLoadCorruptFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
