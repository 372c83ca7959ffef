package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tonimelisma/coldbackup/internal/retry"
)

// Upserter implements the reconciliation protocol for one (new_hash, path)
// pair (sync-algorithm.md §4.6).
type Upserter struct {
	remote  RemoteIndex
	blobs   BlobStore
	local   LocalIndex
	locks   *hashLockTable
	minDur  time.Duration
	logger  *slog.Logger
	dryRun  bool
}

// NewUpserter wires an Upserter. minStorageDuration is the Δ window
// sync-algorithm.md §4.6 reuses to avoid early-deletion fees.
func NewUpserter(remote RemoteIndex, blobs BlobStore, local LocalIndex, locks *hashLockTable, minStorageDuration time.Duration, dryRun bool, logger *slog.Logger) *Upserter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Upserter{remote: remote, blobs: blobs, local: local, locks: locks, minDur: minStorageDuration, dryRun: dryRun, logger: logger}
}

// Upsert runs the protocol for path, whose current bytes hash to newHash.
// oldHash is the previous hash recorded for path, if any (ok=false if this
// is the path's first observation). observedMtime is committed to
// LocalIndex on success.
func (u *Upserter) Upsert(ctx context.Context, path, newHash string, oldHash string, oldHashOK bool, observedMtime time.Time) error {
	unlock := u.locks.lockFor(newHash)
	defer unlock()

	if u.dryRun {
		u.logger.Info("upserter: would upsert (dry-run)", "path", path, "hash", newHash)
		return nil
	}

	r, err := u.getRemote(ctx, newHash)
	if err != nil {
		return err
	}

	if r != nil {
		if err := u.reuseOrRecreateBlob(ctx, r, path); err != nil {
			return err
		}

		r.FileNames[path] = struct{}{}

		if err := u.putRemote(ctx, r); err != nil {
			return err
		}
	} else {
		if err := u.uploadNew(ctx, path, newHash); err != nil {
			return err
		}

		r = &RemoteHashRecord{
			Hash:       newHash,
			FileNames:  map[string]struct{}{path: {}},
			Expiration: time.Now().Add(u.minDur),
		}

		if err := u.putRemote(ctx, r); err != nil {
			return err
		}
	}

	// Step 4: detach from the old hash once the new mapping is durable.
	// Deferred to the end so a crash between here and step 5 leaves I1
	// intact for the new hash; the worst outcome is a stale path entry
	// under oldHash, corrected by the next run's Deleter/Reaper.
	if oldHashOK && oldHash != "" && oldHash != newHash {
		if err := u.detach(ctx, oldHash, path); err != nil {
			// Non-fatal: log and let the next run's Deleter/Reaper correct it.
			u.logger.Warn("upserter: detach from old hash failed, will self-heal",
				"path", path, "old_hash", oldHash, "error", err)
		}
	}

	if err := u.local.InsertOrUpdate(ctx, path, observedMtime); err != nil {
		return fmt.Errorf("engine: upsert commit local state %s: %w", path, err)
	}

	if err := u.local.RecordHashHint(ctx, path, newHash, observedMtime); err != nil {
		// The secondary index is advisory only (Q1); failing to record it
		// never blocks the reconciliation.
		u.logger.Warn("upserter: recording hash hint failed (advisory)", "path", path, "error", err)
	}

	return nil
}

// getRemote fetches the record for hash with retry on transient failures.
func (u *Upserter) getRemote(ctx context.Context, hash string) (*RemoteHashRecord, error) {
	var rec *RemoteHashRecord

	err := retry.Do(ctx, isTransientRemoteErr, func(ctx context.Context) error {
		r, err := u.remote.Get(ctx, hash)
		if err != nil {
			return wrapRemoteErr("get", hash, err)
		}

		rec = r

		return nil
	})

	return rec, err
}

func (u *Upserter) putRemote(ctx context.Context, r *RemoteHashRecord) error {
	return retry.Do(ctx, isTransientRemoteErr, func(ctx context.Context) error {
		if err := u.remote.Put(ctx, r); err != nil {
			return wrapRemoteErr("put", r.Hash, err)
		}

		return nil
	})
}

// reuseOrRecreateBlob implements step 2.a: if the record's path set is
// currently empty, the blob is either still within its retention window
// (undelete it, cheaply reusing the existing object) or must be
// re-uploaded from path's current bytes.
func (u *Upserter) reuseOrRecreateBlob(ctx context.Context, r *RemoteHashRecord, path string) error {
	if !r.Empty() {
		return nil
	}

	if time.Now().Before(r.Expiration) {
		err := retry.Do(ctx, isTransientRemoteErr, func(ctx context.Context) error {
			if err := u.blobs.Undelete(ctx, r.Hash); err != nil {
				return wrapRemoteErr("undelete", r.Hash, err)
			}

			return nil
		})
		if err == nil {
			// Q2: surface a resurrected-but-lifecycle-transitioned blob to
			// the operator rather than silently re-uploading.
			exists, existsErr := u.blobs.Exists(ctx, r.Hash)
			if existsErr == nil && exists {
				return nil
			}

			u.logger.Warn("upserter: undelete reported success but blob is unreadable, treating as consistency drift",
				"hash", r.Hash)
		} else {
			u.logger.Debug("upserter: undelete failed, falling through to re-upload", "hash", r.Hash, "error", err)
		}
	}

	// Expired, undelete failed, or the resurrected object turned out
	// unreadable: re-upload from path's current bytes and re-arm the
	// retention window.
	if err := u.uploadNew(ctx, path, r.Hash); err != nil {
		return err
	}

	r.Expiration = time.Now().Add(u.minDur)

	return nil
}

// uploadNew streams path's current bytes into the blob store under hash.
func (u *Upserter) uploadNew(ctx context.Context, path, hash string) error {
	f, err := os.Open(path)
	if err != nil {
		return &HashError{Path: path, Cause: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &HashError{Path: path, Cause: err}
	}

	return retry.Do(ctx, isTransientRemoteErr, func(ctx context.Context) error {
		if _, err := f.Seek(0, 0); err != nil {
			return err
		}

		if err := u.blobs.Put(ctx, hash, f, info.Size()); err != nil {
			return wrapRemoteErr("put_blob", hash, err)
		}

		return nil
	})
}

// detach removes path from oldHash's record, issuing the blob delete if the
// record goes empty (sync-algorithm.md §4.7 steps 1-3, invoked here as a
// subroutine per §4.6 step 4).
func (u *Upserter) detach(ctx context.Context, oldHash, path string) error {
	return detachFromHash(ctx, u.remote, u.blobs, u.locks, u.minDur, u.logger, oldHash, path)
}

func isTransientRemoteErr(err error) bool {
	return errors.Is(err, ErrTransientRemote)
}

func wrapRemoteErr(op, hash string, err error) error {
	tier := ErrorPermanent
	if errors.Is(err, ErrTransientRemote) {
		tier = ErrorTransient
	}

	return &RemoteError{Op: op, Hash: hash, Err: err, Tier: tier}
}
