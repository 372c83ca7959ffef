package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaper_Reap_RemovesExpiredEmptyRecords(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	blobs := newFakeBlobs()

	const hash = "expiredhash"
	require.NoError(t, blobs.Put(ctx, hash, newBytesReader("x"), 1))
	require.NoError(t, blobs.Delete(ctx, hash))
	require.NoError(t, remote.Put(ctx, &RemoteHashRecord{
		Hash:       hash,
		FileNames:  map[string]struct{}{},
		Expiration: time.Now().Add(-time.Hour),
	}))

	r := NewReaper(remote, blobs, newHashLockTable(), false, nil)
	reaped, err := r.Reap(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	rec, err := remote.Get(ctx, hash)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestReaper_Reap_SkipsRecordsWithinRetentionWindow(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	blobs := newFakeBlobs()

	const hash = "freshhash"
	require.NoError(t, remote.Put(ctx, &RemoteHashRecord{
		Hash:       hash,
		FileNames:  map[string]struct{}{},
		Expiration: time.Now().Add(time.Hour),
	}))

	r := NewReaper(remote, blobs, newHashLockTable(), false, nil)
	reaped, err := r.Reap(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, reaped)

	rec, err := remote.Get(ctx, hash)
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestReaper_Reap_SkipsNonEmptyRecords(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	blobs := newFakeBlobs()

	const hash = "livehash"
	require.NoError(t, remote.Put(ctx, &RemoteHashRecord{
		Hash:       hash,
		FileNames:  map[string]struct{}{"/a.txt": {}},
		Expiration: time.Now().Add(-time.Hour),
	}))

	r := NewReaper(remote, blobs, newHashLockTable(), false, nil)
	reaped, err := r.Reap(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, reaped)
}

func TestReaper_Reap_ForceBypassesRetentionWindow(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	blobs := newFakeBlobs()

	const hash = "notyetexpired"
	require.NoError(t, remote.Put(ctx, &RemoteHashRecord{
		Hash:       hash,
		FileNames:  map[string]struct{}{},
		Expiration: time.Now().Add(time.Hour),
	}))

	r := NewReaper(remote, blobs, newHashLockTable(), false, nil)
	reaped, err := r.Reap(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)
}

func TestReaper_Reap_DryRunCountsButDoesNotDelete(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	blobs := newFakeBlobs()

	const hash = "hash1"
	require.NoError(t, remote.Put(ctx, &RemoteHashRecord{
		Hash:       hash,
		FileNames:  map[string]struct{}{},
		Expiration: time.Now().Add(-time.Hour),
	}))

	r := NewReaper(remote, blobs, newHashLockTable(), true, nil)
	reaped, err := r.Reap(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	rec, err := remote.Get(ctx, hash)
	require.NoError(t, err)
	assert.NotNil(t, rec, "dry run must not actually delete the record")
}
