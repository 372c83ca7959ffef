package engine

import (
	"errors"
	"fmt"
)

// ErrorTier classifies a failure the way sync-algorithm.md §7 requires:
// each kind is handled at the layer that can interpret it, and upper
// layers receive the tier rather than re-deriving it from an opaque string.
type ErrorTier int

const (
	// ErrorTransient is a retried-and-exhausted network/API failure. The
	// path is marked failed for this run only; LocalIndex is unchanged so
	// the next run retries it.
	ErrorTransient ErrorTier = iota
	// ErrorPermanent is an auth/not-found-where-expected/schema failure.
	// Same LocalIndex-untouched handling as ErrorTransient, but it is not
	// retried within the run.
	ErrorPermanent
	// ErrorLocalIO is a local read failure on the source file.
	ErrorLocalIO
	// ErrorConsistencyDrift is an invariant violation self-healed by
	// treating the path as new on the next reconciliation. Logged at WARN,
	// never aborts the run.
	ErrorConsistencyDrift
	// ErrorFatal is a misconfiguration or unreachable LocalIndex: the
	// process exits non-zero without partial commits.
	ErrorFatal
)

func (t ErrorTier) String() string {
	switch t {
	case ErrorTransient:
		return "transient"
	case ErrorPermanent:
		return "permanent"
	case ErrorLocalIO:
		return "local_io"
	case ErrorConsistencyDrift:
		return "consistency_drift"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Sentinel errors for classification via errors.Is, mirroring the
// sentinel+wrapper pattern used throughout this codebase's drivers.
var (
	ErrTransientRemote = errors.New("engine: transient remote error")
	ErrPermanentRemote = errors.New("engine: permanent remote error")
	ErrNotFound        = errors.New("engine: not found")
)

// HashError is returned by the Hasher when a file cannot be streamed.
// Upper layers mark the path as failed for this run and do not touch
// LocalIndex for it (sync-algorithm.md §4.1).
type HashError struct {
	Path  string
	Cause error
}

func (e *HashError) Error() string {
	return fmt.Sprintf("engine: hash %s: %v", e.Path, e.Cause)
}

func (e *HashError) Unwrap() error { return e.Cause }

// RemoteError wraps a RemoteIndex or BlobStore failure with the operation
// and hash it occurred on, and a sentinel for errors.Is classification.
type RemoteError struct {
	Op    string
	Hash  string
	Err   error
	Tier  ErrorTier
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("engine: %s(%s): %v", e.Op, e.Hash, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// ConsistencyDriftError reports a detected invariant violation: e.g., a
// LocalState path with no corresponding RemoteHashRecord membership. The
// engine logs it at WARN and self-heals by treating the path as new on the
// next reconciliation (sync-algorithm.md §7).
type ConsistencyDriftError struct {
	Path   string
	Detail string
}

func (e *ConsistencyDriftError) Error() string {
	return fmt.Sprintf("engine: consistency drift at %s: %s", e.Path, e.Detail)
}

// classify maps an error to its handling tier. Errors that don't match a
// known sentinel or typed error default to ErrorPermanent: unrecognized
// failures are treated conservatively (not retried, not silently dropped).
func classify(err error) ErrorTier {
	if err == nil {
		return ErrorPermanent
	}

	var hashErr *HashError
	if errors.As(err, &hashErr) {
		return ErrorLocalIO
	}

	var driftErr *ConsistencyDriftError
	if errors.As(err, &driftErr) {
		return ErrorConsistencyDrift
	}

	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.Tier
	}

	if errors.Is(err, ErrTransientRemote) {
		return ErrorTransient
	}

	if errors.Is(err, ErrPermanentRemote) {
		return ErrorPermanent
	}

	return ErrorPermanent
}
