package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/ledgerview/internal/database"
)

func TestSessionRepoRoundTrip(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	dbPath := filepath.Join(t.TempDir(), "session.db")
	require.NoError(t, database.RunMigrations(dbPath))
	// applying twice is a no-op
	require.NoError(t, database.RunMigrations(dbPath))

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewSessionRepo(db)
	_, ok, err := repo.Get(ctx, "access_token")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.Set(ctx, "access_token", "one"))
	require.NoError(t, repo.Set(ctx, "access_token", "two"))
	require.NoError(t, repo.Set(ctx, "active_account_id", "acc-1"))

	v, ok, err := repo.Get(ctx, "access_token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "two", v)

	require.NoError(t, repo.Delete(ctx, "access_token"))
	_, ok, err = repo.Get(ctx, "access_token")
	require.NoError(t, err)
	require.False(t, ok)

	v, ok, err = repo.Get(ctx, "active_account_id")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "acc-1", v)
}
