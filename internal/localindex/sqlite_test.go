package localindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/coldbackup/internal/engine"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(":memory:", nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

func TestOpen_AppliesMigrations(t *testing.T) {
	store := newTestStore(t)

	paths, err := store.AllPaths(context.Background())
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestStore_InsertOrUpdateAndAllPaths(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.InsertOrUpdate(ctx, "/a.txt", now))
	require.NoError(t, store.InsertOrUpdate(ctx, "/b.txt", now))

	paths, err := store.AllPaths(ctx)
	require.NoError(t, err)
	assert.Len(t, paths, 2)
	_, ok := paths["/a.txt"]
	assert.True(t, ok)
}

func TestStore_InsertOrUpdate_OverwritesExistingModified(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := time.Now().UTC().Truncate(time.Second)
	second := first.Add(time.Hour)

	require.NoError(t, store.InsertOrUpdate(ctx, "/a.txt", first))
	require.NoError(t, store.InsertOrUpdate(ctx, "/a.txt", second))

	cs, err := store.Diff(ctx, []engine.ObservedPath{{Path: "/a.txt", Modified: second}})
	require.NoError(t, err)
	assert.Empty(t, cs.New)
	assert.Empty(t, cs.Modified)
	assert.Empty(t, cs.Removed)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertOrUpdate(ctx, "/a.txt", time.Now()))
	require.NoError(t, store.Delete(ctx, "/a.txt"))

	paths, err := store.AllPaths(ctx)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestStore_Delete_MissingPathIsNoop(t *testing.T) {
	store := newTestStore(t)

	assert.NoError(t, store.Delete(context.Background(), "/never-existed.txt"))
}

func TestStore_Diff_DetectsNewModifiedAndRemoved(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.InsertOrUpdate(ctx, "/unchanged.txt", base))
	require.NoError(t, store.InsertOrUpdate(ctx, "/stale.txt", base))
	require.NoError(t, store.InsertOrUpdate(ctx, "/removed.txt", base))

	observed := []engine.ObservedPath{
		{Path: "/unchanged.txt", Modified: base},
		{Path: "/stale.txt", Modified: base.Add(time.Minute)},
		{Path: "/new.txt", Modified: base},
	}

	cs, err := store.Diff(ctx, observed)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/new.txt"}, cs.New)
	assert.ElementsMatch(t, []string{"/stale.txt"}, cs.Modified)
	assert.ElementsMatch(t, []string{"/removed.txt"}, cs.Removed)
}

func TestStore_HashHint_RecordGetAndRemove(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.HashHint(ctx, "/a.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.RecordHashHint(ctx, "/a.txt", "deadbeef", time.Now()))

	hash, ok, err := store.HashHint(ctx, "/a.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "deadbeef", hash)

	require.NoError(t, store.RemoveHashHint(ctx, "/a.txt"))

	_, ok, err = store.HashHint(ctx, "/a.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_RecordHashHint_OverwritesPriorHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.RecordHashHint(ctx, "/a.txt", "hash1", now))
	require.NoError(t, store.RecordHashHint(ctx, "/a.txt", "hash2", now.Add(time.Minute)))

	hash, ok, err := store.HashHint(ctx, "/a.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hash2", hash)
}
