package blobstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tonimelisma/coldbackup/internal/engine"
)

type fakeAPIError struct {
	code string
}

func (e *fakeAPIError) Error() string     { return e.code }
func (e *fakeAPIError) ErrorCode() string { return e.code }

func TestIsTransient_KnownThrottlingCodesAreTransient(t *testing.T) {
	for _, code := range []string{"RequestTimeout", "SlowDown", "ServiceUnavailable", "InternalError", "ThrottlingException"} {
		assert.True(t, isTransient(&fakeAPIError{code: code}), code)
	}
}

func TestIsTransient_UnknownCodeIsNotTransient(t *testing.T) {
	assert.False(t, isTransient(&fakeAPIError{code: "AccessDenied"}))
}

func TestIsTransient_PlainErrorIsNotTransient(t *testing.T) {
	assert.False(t, isTransient(errors.New("boom")))
}

func TestWrapErr_TransientWrapsErrTransientRemote(t *testing.T) {
	err := wrapErr("put", "h1", &fakeAPIError{code: "SlowDown"})
	assert.ErrorIs(t, err, engine.ErrTransientRemote)
}

func TestWrapErr_PermanentWrapsErrPermanentRemote(t *testing.T) {
	err := wrapErr("put", "h1", errors.New("access denied"))
	assert.ErrorIs(t, err, engine.ErrPermanentRemote)
}
