package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestorer_Restore_WritesEveryLivePath(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	blobs := newFakeBlobs()

	const hash = "restorehash"
	require.NoError(t, blobs.Put(ctx, hash, newBytesReader("shared bytes"), 12))
	require.NoError(t, remote.Put(ctx, &RemoteHashRecord{
		Hash:      hash,
		FileNames: map[string]struct{}{"a/one.txt": {}, "a/two.txt": {}},
	}))

	dest := t.TempDir()

	r := NewRestorer(remote, blobs, nil)
	written, errs := r.Restore(ctx, dest)

	assert.Empty(t, errs)
	assert.Equal(t, 2, written)

	for _, name := range []string{"one.txt", "two.txt"} {
		data, err := os.ReadFile(filepath.Join(dest, "a", name))
		require.NoError(t, err)
		assert.Equal(t, "shared bytes", string(data))
	}
}

func TestRestorer_Restore_SkipsEmptyRecords(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	blobs := newFakeBlobs()

	require.NoError(t, remote.Put(ctx, &RemoteHashRecord{
		Hash:      "emptyhash",
		FileNames: map[string]struct{}{},
	}))

	dest := t.TempDir()

	r := NewRestorer(remote, blobs, nil)
	written, errs := r.Restore(ctx, dest)

	assert.Empty(t, errs)
	assert.Equal(t, 0, written)
}

func TestRestorer_Restore_MissingBlobRecordsPerPathErrors(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	blobs := newFakeBlobs()

	require.NoError(t, remote.Put(ctx, &RemoteHashRecord{
		Hash:      "missinghash",
		FileNames: map[string]struct{}{"gone.txt": {}},
	}))

	dest := t.TempDir()

	r := NewRestorer(remote, blobs, nil)
	written, errs := r.Restore(ctx, dest)

	assert.Equal(t, 0, written)
	require.Len(t, errs, 1)
	assert.Equal(t, "gone.txt", errs[0].Path)
}

func TestWriteUnderRoot_StripsLeadingSeparators(t *testing.T) {
	dest := t.TempDir()

	require.NoError(t, writeUnderRoot(dest, "/nested/../nested/file.txt", []byte("x")))

	data, err := os.ReadFile(filepath.Join(dest, "nested", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}
