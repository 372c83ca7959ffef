package remoteindex

import (
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"

	"github.com/tonimelisma/coldbackup/internal/engine"
)

func TestToRecord_BuildsFileNameSetFromStringSet(t *testing.T) {
	exp := time.Now().UTC().Truncate(time.Second)
	it := &item{Hash: "h1", FileNames: []string{"a.txt", "b.txt"}, Expiration: exp}

	rec := toRecord(it)

	assert.Equal(t, "h1", rec.Hash)
	assert.Len(t, rec.FileNames, 2)
	_, ok := rec.FileNames["a.txt"]
	assert.True(t, ok)
	assert.True(t, rec.Expiration.Equal(exp))
}

func TestFromRecord_FlattensFileNameSetToSlice(t *testing.T) {
	rec := &engine.RemoteHashRecord{
		Hash:      "h1",
		FileNames: map[string]struct{}{"a.txt": {}, "b.txt": {}},
	}

	it := fromRecord(rec)

	assert.Equal(t, "h1", it.Hash)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, it.FileNames)
}

func TestToRecord_EmptyFileNamesRoundTrips(t *testing.T) {
	it := &item{Hash: "h1"}

	rec := toRecord(it)

	assert.True(t, rec.Empty())
}

func TestIsTransient_ThroughputExceededIsTransient(t *testing.T) {
	err := &types.ProvisionedThroughputExceededException{}
	assert.True(t, isTransient(err))
}

func TestIsTransient_RequestLimitExceededIsTransient(t *testing.T) {
	err := &types.RequestLimitExceeded{}
	assert.True(t, isTransient(err))
}

func TestIsTransient_OtherErrorsAreNotTransient(t *testing.T) {
	assert.False(t, isTransient(errors.New("boom")))
}

func TestWrapErr_TransientWrapsErrTransientRemote(t *testing.T) {
	err := wrapErr("get", "h1", &types.RequestLimitExceeded{})
	assert.ErrorIs(t, err, engine.ErrTransientRemote)
}

func TestWrapErr_PermanentWrapsErrPermanentRemote(t *testing.T) {
	err := wrapErr("get", "h1", errors.New("access denied"))
	assert.ErrorIs(t, err, engine.ErrPermanentRemote)
}
