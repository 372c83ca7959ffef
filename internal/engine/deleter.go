package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tonimelisma/coldbackup/internal/retry"
)

// Deleter implements the reconciliation protocol for one removed path
// (sync-algorithm.md §4.7).
type Deleter struct {
	remote RemoteIndex
	blobs  BlobStore
	local  LocalIndex
	locks  *hashLockTable
	minDur time.Duration
	dryRun bool
	logger *slog.Logger
}

// NewDeleter wires a Deleter.
func NewDeleter(remote RemoteIndex, blobs BlobStore, local LocalIndex, locks *hashLockTable, minStorageDuration time.Duration, dryRun bool, logger *slog.Logger) *Deleter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Deleter{remote: remote, blobs: blobs, local: local, locks: locks, minDur: minStorageDuration, dryRun: dryRun, logger: logger}
}

// Delete reconciles one path that the Walker no longer observed on disk.
// hash is the content hash path was last known under; the caller resolves
// it via the advisory secondary index, falling back to a bounded scan when
// neither is available (sync-algorithm.md §4.7 step 1).
func (d *Deleter) Delete(ctx context.Context, path, hash string) error {
	if d.dryRun {
		d.logger.Info("deleter: would delete (dry-run)", "path", path, "hash", hash)
		return nil
	}

	if err := detachFromHash(ctx, d.remote, d.blobs, d.locks, d.minDur, d.logger, hash, path); err != nil {
		return err
	}

	if err := d.local.Delete(ctx, path); err != nil {
		return fmt.Errorf("engine: delete commit local state %s: %w", path, err)
	}

	if err := d.local.RemoveHashHint(ctx, path); err != nil {
		d.logger.Warn("deleter: removing hash hint failed (advisory)", "path", path, "error", err)
	}

	return nil
}

// detachFromHash is the shared "detach-from-hash" subroutine
// (sync-algorithm.md §4.7 steps 1-3): remove path from hash's record,
// persist it, and if the record's path set is now empty, delete the blob.
// An expiration already on the record is left as previously set; one that
// was never set is armed at now + minDur before the put. The Upserter invokes
// this as its step 4; the Deleter invokes it directly for an explicitly
// removed path.
func detachFromHash(ctx context.Context, remote RemoteIndex, blobs BlobStore, locks *hashLockTable, minDur time.Duration, logger *slog.Logger, hash, path string) error {
	if hash == "" {
		return nil
	}

	unlock := locks.lockFor(hash)
	defer unlock()

	var r *RemoteHashRecord

	err := retry.Do(ctx, isTransientRemoteErr, func(ctx context.Context) error {
		got, getErr := remote.Get(ctx, hash)
		if getErr != nil {
			return wrapRemoteErr("get", hash, getErr)
		}

		r = got

		return nil
	})
	if err != nil {
		return err
	}

	if r == nil {
		// Nothing to detach from — self-heal: the record is already gone.
		return nil
	}

	delete(r.FileNames, path)

	wasEmptied := r.Empty()
	if wasEmptied && r.Expiration.IsZero() {
		r.Expiration = time.Now().Add(minDur)
	}

	err = retry.Do(ctx, isTransientRemoteErr, func(ctx context.Context) error {
		if putErr := remote.Put(ctx, r); putErr != nil {
			return wrapRemoteErr("put", hash, putErr)
		}

		return nil
	})
	if err != nil {
		return err
	}

	if !wasEmptied {
		return nil
	}

	// Step 3a: delete the now-unreferenced blob. NotFound is treated as
	// success, with the path set defensively re-emptied (self-heal).
	err = retry.Do(ctx, isTransientRemoteErr, func(ctx context.Context) error {
		delErr := blobs.Delete(ctx, hash)
		if delErr == nil || errors.Is(delErr, ErrNotFound) {
			return nil
		}

		return wrapRemoteErr("delete_blob", hash, delErr)
	})
	if err != nil {
		return err
	}

	logger.Debug("deleter: blob record emptied", "hash", hash, "expiration", r.Expiration)

	return nil
}
