// Package engine implements the change-detection and content-addressed
// upsert/delete protocol described in sync-algorithm.md: a local relational
// table of per-path modification times, a remote key-value index mapping
// content hash to live path sets, and a cold object store keyed by hash.
package engine

import "time"

// LocalStateRow is one row of the local authoritative mirror of paths
// currently reflected in the RemoteIndex. Primary key is Path.
type LocalStateRow struct {
	Path     string
	Modified time.Time
}

// RemoteHashRecord maps one content hash to the set of live logical paths
// that currently share it, plus the earliest time it may be reaped once
// that set goes empty.
type RemoteHashRecord struct {
	Hash       string
	FileNames  map[string]struct{}
	Expiration time.Time
}

// Clone returns a deep copy so callers can mutate FileNames without
// aliasing a record a driver may still hold cached.
func (r *RemoteHashRecord) Clone() *RemoteHashRecord {
	if r == nil {
		return nil
	}

	names := make(map[string]struct{}, len(r.FileNames))
	for p := range r.FileNames {
		names[p] = struct{}{}
	}

	return &RemoteHashRecord{Hash: r.Hash, FileNames: names, Expiration: r.Expiration}
}

// Empty reports whether the record currently maps to no live path.
func (r *RemoteHashRecord) Empty() bool {
	return len(r.FileNames) == 0
}

// ObservedPath is one (path, mtime) pair produced by the Walker.
type ObservedPath struct {
	Path     string
	Modified time.Time
}

// ChangeSet is the output of LocalIndex.Diff: the three disjoint sets of
// paths an observed walk differs from LocalIndex by.
type ChangeSet struct {
	New      []string
	Modified []string
	Removed  []string
}

// Total returns the number of paths touched by this change set.
func (c ChangeSet) Total() int {
	return len(c.New) + len(c.Modified) + len(c.Removed)
}

// RunKind distinguishes the three CLI-facing operations that drive the
// engine: a reconciliation pass, a restore, and a reap-only pass.
type RunKind string

const (
	RunBackup  RunKind = "backup"
	RunRestore RunKind = "restore"
	RunClean   RunKind = "clean"
)

// RunReport summarizes one engine run for the operator-facing "N succeeded,
// M failed" line required by sync-algorithm.md §7.
type RunReport struct {
	CycleID          string
	Kind             RunKind
	DryRun           bool
	Duration         time.Duration
	Succeeded        int
	Failed           int
	Errors           []PathError
	Reaped           int
	BytesTransferred int64
}

// PathError records a path that failed reconciliation this run, along with
// the classified error tier so operators and tests can distinguish
// transient retries-exhausted failures from permanent ones.
type PathError struct {
	Path string
	Tier ErrorTier
	Err  error
}

// StatusSummary is a read-only snapshot of LocalIndex and RemoteIndex
// record counts, cheap enough to compute between backup cycles since it
// never touches the target directory or the blob store.
type StatusSummary struct {
	LocalPaths       int `json:"local_paths"`
	RemoteHashes     int `json:"remote_hashes"`
	RemoteLivePaths  int `json:"remote_live_paths"`
	RemoteEmptyCount int `json:"remote_empty_records"`
}
