package engine

import (
	"context"
	"io"
	"time"
)

// LocalIndex is the durable per-path {modified} mirror (sync-algorithm.md
// §4.3). Implementations must be safe for sequential use from the
// coordinator task only — the spec requires LocalIndex be accessed solely
// from the main coordination task to avoid cross-task transactions.
type LocalIndex interface {
	InsertOrUpdate(ctx context.Context, path string, modified time.Time) error
	Delete(ctx context.Context, path string) error
	Diff(ctx context.Context, observed []ObservedPath) (ChangeSet, error)
	AllPaths(ctx context.Context) (map[string]struct{}, error)
	// HashHint returns the advisory content hash last recorded for path, if
	// any (the glacier_state secondary index, Q1: advisory, never
	// authoritative). ok is false if no hint is recorded.
	HashHint(ctx context.Context, path string) (hash string, ok bool, err error)
	// RecordHashHint opportunistically updates the advisory secondary index.
	RecordHashHint(ctx context.Context, path, hash string, modified time.Time) error
	RemoveHashHint(ctx context.Context, path string) error
	Close() error
}

// RemoteIndex is the remote key-value store of RemoteHashRecord rows
// (sync-algorithm.md §4.4). Implementations must be safe for concurrent
// use from multiple tasks; same-hash ordering is the caller's
// responsibility (enforced by the engine's per-hash mutex table).
type RemoteIndex interface {
	Get(ctx context.Context, hash string) (*RemoteHashRecord, error)
	Put(ctx context.Context, record *RemoteHashRecord) error
	Delete(ctx context.Context, hash string) error
	// Scan streams every record via cb. cb returning an error stops the
	// scan and the error propagates to the caller. Used by the Reaper, the
	// Restorer, the engine's fallback lookup for a path with no hash hint,
	// and status reporting.
	Scan(ctx context.Context, cb func(*RemoteHashRecord) error) error
}

// BlobStore is the cold object store keyed by hash hex string
// (sync-algorithm.md §4.5). Implementations must be safe for concurrent
// use from multiple tasks and must support object versioning with an
// early-deletion fee model (min_storage_duration).
type BlobStore interface {
	Put(ctx context.Context, hash string, r io.Reader, size int64) error
	Get(ctx context.Context, hash string) (io.ReadCloser, error)
	Delete(ctx context.Context, hash string) error
	// Undelete removes the most recent delete marker, restoring the last
	// versioned object. Returns ErrNotFound if there is nothing to restore.
	Undelete(ctx context.Context, hash string) error
	Exists(ctx context.Context, hash string) (bool, error)
}
