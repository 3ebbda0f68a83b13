package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fidde/codesnip/internal/storage"
	"github.com/fidde/codesnip/internal/storage/sqlite"
	"github.com/fidde/codesnip/internal/storage/storagetest"
)

// setupTestStore creates a SQLite database in a temporary directory.
func setupTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	cfg := sqlite.DefaultConfig(filepath.Join(t.TempDir(), "test.db"))
	cfg.FlushInterval = 5 * time.Millisecond

	store, err := sqlite.New(cfg)
	require.NoError(t, err)
	return store
}

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return setupTestStore(t)
	})
}

func TestInMemoryDatabase(t *testing.T) {
	store, err := sqlite.New(sqlite.DefaultConfig(":memory:"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.CreateUser(ctx, storagetest.NewUser("u1")))
	require.NoError(t, store.CreateSnippet(ctx, storagetest.NewSnippet("a", "u1", 0, "go")))
	require.NoError(t, store.IncrementViewCount(ctx, "a"))

	got, err := store.GetSnippet(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ViewCount)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	store, err := sqlite.New(sqlite.DefaultConfig(path))
	require.NoError(t, err)
	require.NoError(t, store.CreateUser(ctx, storagetest.NewUser("u1")))
	require.NoError(t, store.CreateSnippet(ctx, storagetest.NewSnippet("a", "u1", 0, "go")))
	require.NoError(t, store.Close())

	store, err = sqlite.New(sqlite.DefaultConfig(path))
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetSnippetBySlug(ctx, "snippet-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, got.Tags)
}

func TestIncrementAfterClose(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.Close())
	assert.Error(t, store.IncrementViewCount(context.Background(), "a"))
	assert.NoError(t, store.Close())
}
