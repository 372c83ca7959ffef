package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Default worker counts when Config leaves them unset (sync-algorithm.md
// §5): remote-call concurrency is bounded independently of hashing
// concurrency since the two contend for different resources (network vs
// CPU).
const (
	defaultRemoteWorkers = 8
)

// Config wires an Engine to its three stores and tunes its concurrency and
// retention parameters.
type Config struct {
	Local              LocalIndex
	Remote             RemoteIndex
	Blobs              BlobStore
	TargetDir          string
	Filters            []string
	MinStorageDuration time.Duration
	RemoteWorkers      int
	HashWorkers        int
	DryRun             bool
	Logger             *slog.Logger
}

// Engine orchestrates one backup, restore, or clean cycle: Walker →
// LocalIndex.Diff → per-path Hasher+Upserter/Deleter → Reaper
// (sync-algorithm.md §§4.2, 4.6-4.8).
type Engine struct {
	cfg    Config
	logger *slog.Logger
	hasher *Hasher
	locks  *hashLockTable
}

// New validates cfg and returns a ready-to-run Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.RemoteWorkers <= 0 {
		cfg.RemoteWorkers = defaultRemoteWorkers
	}

	if cfg.HashWorkers <= 0 {
		cfg.HashWorkers = runtime.NumCPU()
	}

	return &Engine{
		cfg:    cfg,
		logger: cfg.Logger,
		hasher: NewHasher(),
		locks:  newHashLockTable(),
	}, nil
}

// hashedPath is a path paired with its freshly computed content hash,
// produced by the hashing stage and consumed by the upsert stage.
type hashedPath struct {
	path      string
	modified  time.Time
	hash      string
	oldHash   string
	oldHashOK bool
	size      int64
}

// upsertTarget pairs a path awaiting hash+upsert with whether LocalIndex
// already carried a prior record for it. New paths legitimately have no
// hash hint; modified paths do, and a missing hint there signals the
// advisory secondary index fell behind, not that there is no old hash.
type upsertTarget struct {
	path     string
	modified bool
}

// Backup runs one reconciliation cycle: walk TargetDir, diff against
// LocalIndex, hash new/modified files, reconcile each path through an
// Upserter, reconcile each removed path through a Deleter, then reap
// emptied RemoteIndex records past their retention window.
func (e *Engine) Backup(ctx context.Context) (*RunReport, error) {
	start := time.Now()
	report := &RunReport{CycleID: uuid.NewString(), Kind: RunBackup, DryRun: e.cfg.DryRun}

	walker, err := NewWalker(e.cfg.TargetDir, e.cfg.Filters, e.logger)
	if err != nil {
		return nil, err
	}

	observed, err := walker.Walk()
	if err != nil {
		return nil, err
	}

	changes, err := e.cfg.Local.Diff(ctx, observed)
	if err != nil {
		return nil, err
	}

	e.logger.Info("engine: backup starting",
		"cycle_id", report.CycleID,
		"new", len(changes.New), "modified", len(changes.Modified), "removed", len(changes.Removed))

	upserter := NewUpserter(e.cfg.Remote, e.cfg.Blobs, e.cfg.Local, e.locks, e.cfg.MinStorageDuration, e.cfg.DryRun, e.logger)
	deleter := NewDeleter(e.cfg.Remote, e.cfg.Blobs, e.cfg.Local, e.locks, e.cfg.MinStorageDuration, e.cfg.DryRun, e.logger)

	toUpsert := make([]upsertTarget, 0, len(changes.New)+len(changes.Modified))
	for _, p := range changes.New {
		toUpsert = append(toUpsert, upsertTarget{path: p, modified: false})
	}
	for _, p := range changes.Modified {
		toUpsert = append(toUpsert, upsertTarget{path: p, modified: true})
	}

	if err := e.hashAndUpsert(ctx, toUpsert, upserter, report); err != nil {
		return nil, err
	}

	if err := e.deleteRemoved(ctx, changes.Removed, deleter, report); err != nil {
		return nil, err
	}

	reaper := NewReaper(e.cfg.Remote, e.cfg.Blobs, e.locks, e.cfg.DryRun, e.logger)

	reaped, err := reaper.Reap(ctx, false)
	if err != nil {
		e.logger.Warn("engine: reap pass failed", "error", err)
	} else {
		report.Reaped = reaped
	}

	report.Duration = time.Since(start)

	e.logger.Info("engine: backup complete",
		"cycle_id", report.CycleID, "succeeded", report.Succeeded, "failed", report.Failed,
		"reaped", report.Reaped, "duration", report.Duration)

	return report, nil
}

// hashAndUpsert fans paths out across two bounded worker pools in sequence:
// a CPU-bound hashing stage feeding a network-bound upsert stage. Both
// stages share the same errgroup.WithContext cancellation so a fatal
// failure in either aborts the whole cycle; per-path failures are recorded
// on report and never abort it (sync-algorithm.md §7).
func (e *Engine) hashAndUpsert(ctx context.Context, targets []upsertTarget, upserter *Upserter, report *RunReport) error {
	if len(targets) == 0 {
		return nil
	}

	hashed := make(chan hashedPath, len(targets))

	hg, hctx := errgroup.WithContext(ctx)
	hg.SetLimit(e.cfg.HashWorkers)

	var mu sync.Mutex

	for _, t := range targets {
		target := t

		hg.Go(func() error {
			if hctx.Err() != nil {
				return hctx.Err()
			}

			path := target.path

			hash, err := e.hasher.HashFile(path)
			if err != nil {
				mu.Lock()
				report.Failed++
				report.Errors = append(report.Errors, PathError{Path: path, Tier: classify(err), Err: err})
				mu.Unlock()

				return nil
			}

			oldHash, ok, err := e.cfg.Local.HashHint(hctx, path)
			if err != nil {
				e.logger.Warn("engine: hash hint lookup failed (advisory)", "path", path, "error", err)
				ok = false
			}

			if !ok && target.modified {
				e.logger.Warn("engine: no hash hint for modified path, scanning remote index", "path", path)

				scanned, scanErr := e.resolveHashByScan(hctx, path)

				var driftErr *ConsistencyDriftError

				switch {
				case scanErr == nil:
					oldHash, ok = scanned, true
				case errors.As(scanErr, &driftErr):
					e.logger.Warn("engine: consistency drift, reconciling path as new", "path", path, "error", scanErr)
					oldHash, ok = "", false
				default:
					mu.Lock()
					report.Failed++
					report.Errors = append(report.Errors, PathError{Path: path, Tier: classify(scanErr), Err: scanErr})
					mu.Unlock()

					return nil
				}
			}

			modified, size, statErr := observedMtime(path)
			if statErr != nil {
				mu.Lock()
				report.Failed++
				report.Errors = append(report.Errors, PathError{Path: path, Tier: ErrorLocalIO, Err: statErr})
				mu.Unlock()

				return nil
			}

			hashed <- hashedPath{path: path, modified: modified, hash: hash, oldHash: oldHash, oldHashOK: ok, size: size}

			return nil
		})
	}

	go func() {
		_ = hg.Wait()
		close(hashed)
	}()

	ug, uctx := errgroup.WithContext(ctx)
	ug.SetLimit(e.cfg.RemoteWorkers)

	for hp := range hashed {
		hp := hp

		ug.Go(func() error {
			if uctx.Err() != nil {
				return uctx.Err()
			}

			err := upserter.Upsert(uctx, hp.path, hp.hash, hp.oldHash, hp.oldHashOK, hp.modified)

			mu.Lock()
			if err != nil {
				report.Failed++
				report.Errors = append(report.Errors, PathError{Path: hp.path, Tier: classify(err), Err: err})
			} else {
				report.Succeeded++
				report.BytesTransferred += hp.size
			}
			mu.Unlock()

			return nil
		})
	}

	if err := ug.Wait(); err != nil {
		return err
	}

	return hg.Wait()
}

// deleteRemoved fans removed paths out across a bounded worker pool of
// Deleter invocations.
func (e *Engine) deleteRemoved(ctx context.Context, paths []string, deleter *Deleter, report *RunReport) error {
	if len(paths) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.RemoteWorkers)

	var mu sync.Mutex

	for _, p := range paths {
		path := p

		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			hash, ok, err := e.cfg.Local.HashHint(gctx, path)
			if err != nil || !ok {
				e.logger.Warn("engine: no hash hint for removed path, scanning remote index", "path", path)

				hash, err = e.resolveHashByScan(gctx, path)

				var driftErr *ConsistencyDriftError
				if errors.As(err, &driftErr) {
					// No record lists path: there is nothing remote to detach,
					// so only its LocalIndex row is dropped.
					e.logger.Warn("engine: consistency drift, dropping removed path from local index", "path", path, "error", err)
					hash, err = "", nil
				}

				if err != nil {
					mu.Lock()
					report.Failed++
					report.Errors = append(report.Errors, PathError{Path: path, Tier: classify(err), Err: err})
					mu.Unlock()

					return nil
				}
			}

			err = deleter.Delete(gctx, path, hash)

			mu.Lock()
			if err != nil {
				report.Failed++
				report.Errors = append(report.Errors, PathError{Path: path, Tier: classify(err), Err: err})
			} else {
				report.Succeeded++
			}
			mu.Unlock()

			return nil
		})
	}

	return g.Wait()
}

// observedMtime re-stats path for the mtime to commit to LocalIndex and the
// file's current size for the run's bytes-transferred total, truncating
// the mtime to second precision to match Walker's observation granularity.
func observedMtime(path string) (time.Time, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, 0, err
	}

	return info.ModTime().Truncate(time.Second), info.Size(), nil
}

// resolveHashByScan is the fallback path sync-algorithm.md §4.7 step 1
// describes when the advisory secondary index has no hint for a removed
// path, also used for a modified path whose hint is missing: a bounded scan
// of RemoteIndex for the record whose FileNames contains path.
func (e *Engine) resolveHashByScan(ctx context.Context, path string) (string, error) {
	var found string

	err := e.cfg.Remote.Scan(ctx, func(rec *RemoteHashRecord) error {
		if found != "" {
			return nil
		}

		if _, ok := rec.FileNames[path]; ok {
			found = rec.Hash
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	if found == "" {
		return "", &ConsistencyDriftError{Path: path, Detail: "path has no RemoteIndex record referencing it"}
	}

	return found, nil
}

// Restore reconstructs the live tree into dest.
func (e *Engine) Restore(ctx context.Context, dest string) (*RunReport, error) {
	start := time.Now()
	report := &RunReport{CycleID: uuid.NewString(), Kind: RunRestore, DryRun: e.cfg.DryRun}

	restorer := NewRestorer(e.cfg.Remote, e.cfg.Blobs, e.logger)

	written, errs := restorer.Restore(ctx, dest)

	report.Succeeded = written
	report.Failed = len(errs)

	for _, re := range errs {
		report.Errors = append(report.Errors, PathError{Path: re.Path, Tier: classify(re.Err), Err: re.Err})
	}

	report.Duration = time.Since(start)

	e.logger.Info("engine: restore complete",
		"cycle_id", report.CycleID, "written", written, "failed", len(errs), "duration", report.Duration)

	return report, nil
}

// Clean runs a reap-only pass, independent of a backup cycle (the CLI's
// standalone "clean" operation).
func (e *Engine) Clean(ctx context.Context, force bool) (*RunReport, error) {
	start := time.Now()
	report := &RunReport{CycleID: uuid.NewString(), Kind: RunClean, DryRun: e.cfg.DryRun}

	reaper := NewReaper(e.cfg.Remote, e.cfg.Blobs, e.locks, e.cfg.DryRun, e.logger)

	if force {
		e.logger.Warn("engine: forced clean, reaping empty records regardless of retention window", "cycle_id", report.CycleID)
	}

	reaped, err := reaper.Reap(ctx, force)
	if err != nil {
		return nil, err
	}

	report.Reaped = reaped
	report.Duration = time.Since(start)

	e.logger.Info("engine: clean complete", "cycle_id", report.CycleID, "reaped", reaped, "duration", report.Duration)

	return report, nil
}

// Close releases any resources owned by the Engine's configured stores.
func (e *Engine) Close() error {
	return e.cfg.Local.Close()
}

// Status computes a read-only summary of LocalIndex and RemoteIndex record
// counts without touching the target directory or the blob store.
func (e *Engine) Status(ctx context.Context) (*StatusSummary, error) {
	localPaths, err := e.cfg.Local.AllPaths(ctx)
	if err != nil {
		return nil, err
	}

	summary := &StatusSummary{LocalPaths: len(localPaths)}

	err = e.cfg.Remote.Scan(ctx, func(rec *RemoteHashRecord) error {
		summary.RemoteHashes++
		summary.RemoteLivePaths += len(rec.FileNames)

		if rec.Empty() {
			summary.RemoteEmptyCount++
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// ListRecords returns every RemoteHashRecord currently in RemoteIndex,
// for the CLI's verbose status listing.
func (e *Engine) ListRecords(ctx context.Context) ([]*RemoteHashRecord, error) {
	var records []*RemoteHashRecord

	err := e.cfg.Remote.Scan(ctx, func(rec *RemoteHashRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}
