package remoteindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/coldbackup/internal/engine"
)

func TestMemory_GetMissingReturnsNilNoError(t *testing.T) {
	m := NewMemory()

	rec, err := m.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMemory_PutAndGetRoundTrips(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, &engine.RemoteHashRecord{
		Hash:      "h1",
		FileNames: map[string]struct{}{"a.txt": {}},
	}))

	rec, err := m.Get(ctx, "h1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "h1", rec.Hash)
	_, ok := rec.FileNames["a.txt"]
	assert.True(t, ok)
}

func TestMemory_Put_ClonesSoCallerMutationDoesNotLeak(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	record := &engine.RemoteHashRecord{Hash: "h1", FileNames: map[string]struct{}{"a.txt": {}}}
	require.NoError(t, m.Put(ctx, record))

	record.FileNames["b.txt"] = struct{}{}

	rec, err := m.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Len(t, rec.FileNames, 1)
}

func TestMemory_Get_ClonesSoCallerMutationDoesNotLeak(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, &engine.RemoteHashRecord{Hash: "h1", FileNames: map[string]struct{}{"a.txt": {}}}))

	rec, err := m.Get(ctx, "h1")
	require.NoError(t, err)
	rec.FileNames["b.txt"] = struct{}{}

	rec2, err := m.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Len(t, rec2.FileNames, 1)
}

func TestMemory_Delete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, &engine.RemoteHashRecord{Hash: "h1", FileNames: map[string]struct{}{}}))
	require.NoError(t, m.Delete(ctx, "h1"))

	rec, err := m.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMemory_Delete_MissingIsNoop(t *testing.T) {
	m := NewMemory()
	assert.NoError(t, m.Delete(context.Background(), "missing"))
}

func TestMemory_Scan_VisitsEveryRecord(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, &engine.RemoteHashRecord{Hash: "h1", FileNames: map[string]struct{}{}}))
	require.NoError(t, m.Put(ctx, &engine.RemoteHashRecord{Hash: "h2", FileNames: map[string]struct{}{}}))

	seen := make(map[string]struct{})
	require.NoError(t, m.Scan(ctx, func(r *engine.RemoteHashRecord) error {
		seen[r.Hash] = struct{}{}
		return nil
	}))

	assert.Len(t, seen, 2)
}

func TestMemory_Scan_StopsOnCallbackError(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, &engine.RemoteHashRecord{Hash: "h1", FileNames: map[string]struct{}{}}))
	require.NoError(t, m.Put(ctx, &engine.RemoteHashRecord{Hash: "h2", FileNames: map[string]struct{}{}}))

	boom := assert.AnError
	calls := 0
	err := m.Scan(ctx, func(*engine.RemoteHashRecord) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
