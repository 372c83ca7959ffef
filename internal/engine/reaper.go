package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tonimelisma/coldbackup/internal/retry"
)

// Reaper cleans up RemoteHashRecords whose path set has been empty past
// its expiration (sync-algorithm.md §4.8).
type Reaper struct {
	remote RemoteIndex
	blobs  BlobStore
	locks  *hashLockTable
	dryRun bool
	logger *slog.Logger
}

// NewReaper wires a Reaper.
func NewReaper(remote RemoteIndex, blobs BlobStore, locks *hashLockTable, dryRun bool, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reaper{remote: remote, blobs: blobs, locks: locks, dryRun: dryRun, logger: logger}
}

// Reap scans RemoteIndex and deletes every record whose FileNames is empty
// and whose Expiration has passed. If force is true, the expiration check
// is skipped (the CLI's "clean --force" operator escape hatch). Returns the
// number of records reaped.
func (r *Reaper) Reap(ctx context.Context, force bool) (int, error) {
	now := time.Now()

	var toReap []string

	err := r.remote.Scan(ctx, func(rec *RemoteHashRecord) error {
		if !rec.Empty() {
			return nil
		}

		if force || rec.Expiration.Before(now) {
			toReap = append(toReap, rec.Hash)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	reaped := 0

	for _, hash := range toReap {
		if r.dryRun {
			r.logger.Info("reaper: would reap (dry-run)", "hash", hash)
			reaped++

			continue
		}

		done, err := r.reapOne(ctx, hash)
		if err != nil {
			r.logger.Warn("reaper: failed to reap record", "hash", hash, "error", err)
			continue
		}

		if done {
			reaped++
		}
	}

	return reaped, nil
}

func (r *Reaper) reapOne(ctx context.Context, hash string) (bool, error) {
	unlock := r.locks.lockFor(hash)
	defer unlock()

	// Re-check under the lock: a concurrent Upsert may have re-populated
	// this record between the scan and now.
	rec, err := retryGet(ctx, r.remote, hash)
	if err != nil {
		return false, err
	}

	if rec == nil || !rec.Empty() {
		return false, nil
	}

	err = retry.Do(ctx, isTransientRemoteErr, func(ctx context.Context) error {
		delErr := r.blobs.Delete(ctx, hash)
		if delErr == nil || errors.Is(delErr, ErrNotFound) {
			return nil
		}

		return wrapRemoteErr("delete_blob", hash, delErr)
	})
	if err != nil {
		return false, err
	}

	err = retry.Do(ctx, isTransientRemoteErr, func(ctx context.Context) error {
		if delErr := r.remote.Delete(ctx, hash); delErr != nil {
			return wrapRemoteErr("delete", hash, delErr)
		}

		return nil
	})

	return err == nil, err
}

func retryGet(ctx context.Context, remote RemoteIndex, hash string) (*RemoteHashRecord, error) {
	var rec *RemoteHashRecord

	err := retry.Do(ctx, isTransientRemoteErr, func(ctx context.Context) error {
		got, getErr := remote.Get(ctx, hash)
		if getErr != nil {
			return wrapRemoteErr("get", hash, getErr)
		}

		rec = got

		return nil
	})

	return rec, err
}
