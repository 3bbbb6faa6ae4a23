// Package reconcile compares patient file records against the blobs in the
// upload store and repairs the record table on explicit request.
//
// A pass never mutates anything. Deleting orphaned records and rewriting
// file paths are separate calls that take the ids or moves to apply.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"filerecon/internal/blobstore"
	"filerecon/internal/models"
)

// RecordStore is the record-table surface a reconciliation pass needs.
type RecordStore interface {
	ListFiles(ctx context.Context) ([]models.FileRecord, error)
	DeleteFile(ctx context.Context, id int64) error
}

// PathUpdater rewrites a record's file_path.
type PathUpdater interface {
	UpdateFilePath(ctx context.Context, id int64, path string) error
}

// Reconciler runs reconciliation passes over one record store and one blob store.
type Reconciler struct {
	records   RecordStore
	blobs     blobstore.BlobStore
	matcher   Matcher
	statBlobs bool
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithMatcher selects the relocation matcher. The default is PrefixMatcher.
func WithMatcher(m Matcher) Option {
	return func(r *Reconciler) {
		if m != nil {
			r.matcher = m
		}
	}
}

// WithBlobStats stats every matched blob and flags size mismatches.
func WithBlobStats() Option {
	return func(r *Reconciler) {
		r.statBlobs = true
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time source used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// New constructs a Reconciler.
func New(records RecordStore, blobs blobstore.BlobStore, opts ...Option) *Reconciler {
	r := &Reconciler{
		records: records,
		blobs:   blobs,
		matcher: PrefixMatcher{},
		logger:  slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "reconcile")
	return r
}

// Run performs one read-only pass. The record store is read first so that an
// unreachable database never produces a false orphan set.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	if r == nil || r.records == nil || r.blobs == nil {
		return nil, fmt.Errorf("reconciler is not configured")
	}
	started := r.now()

	records, err := r.records.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list files: %v", ErrStoreUnavailable, err)
	}
	r.logger.Debug("loaded file records", "count", len(records))

	listing, err := r.blobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list blobs: %v", ErrDirectoryUnreadable, err)
	}
	r.logger.Debug("listed blobs", "count", len(listing))

	classification := Classify(records, listing, r.matcher)
	if r.statBlobs {
		if err := r.attachStats(ctx, &classification); err != nil {
			return nil, err
		}
	}

	report := newReport(classification, r.matcher.Name(), len(listing))
	report.StartedAt = started
	report.FinishedAt = r.now()

	r.logger.Info("reconciliation complete",
		"records", report.Summary.Total,
		"blobs", report.BlobCount,
		"consistent", report.Summary.Consistent,
		"relocatable", report.Summary.Relocatable,
		"orphaned", report.Summary.Orphaned,
		"matcher", report.Matcher,
	)
	return report, nil
}

// Sweep runs a pass and, when apply is set, deletes the orphaned records it
// found. A failed pass deletes nothing.
func (r *Reconciler) Sweep(ctx context.Context, apply bool) (*Report, error) {
	report, err := r.Run(ctx)
	if err != nil {
		return nil, err
	}
	report.DryRun = !apply
	if !apply {
		return report, nil
	}
	cleanup := r.Cleanup(ctx, report.OrphanIDs())
	report.ApplyCleanup(cleanup)
	return report, nil
}

// Cleanup deletes exactly the given record ids. Each delete is independent: a
// failure is logged and counted and the next id is attempted. Deleting an id
// that is already gone is not a failure. Cleanup stops early only when ctx is
// done; the ids not attempted are counted as skipped.
func (r *Reconciler) Cleanup(ctx context.Context, ids []int64) CleanupResult {
	ids = uniqueIDs(ids)
	result := CleanupResult{Requested: len(ids), Failed: []DeleteFailure{}}

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			result.Skipped = len(ids) - i
			r.logger.Warn("cleanup interrupted", "remaining", result.Skipped, "err", err)
			break
		}
		if err := r.records.DeleteFile(ctx, id); err != nil {
			r.logger.Warn("delete failed", "id", id, "err", err)
			result.Failed = append(result.Failed, DeleteFailure{ID: id, Error: err.Error()})
			continue
		}
		r.logger.Debug("deleted orphaned record", "id", id)
		result.Deleted = append(result.Deleted, id)
	}

	r.logger.Info("cleanup complete",
		"requested", result.Requested,
		"deleted", len(result.Deleted),
		"failed", len(result.Failed),
		"skipped", result.Skipped,
	)
	return result
}

// Relink points each record at its suggested blob. Failures are logged,
// counted and do not stop the remaining moves.
func (r *Reconciler) Relink(ctx context.Context, updater PathUpdater, moves []Relocation) RelinkResult {
	result := RelinkResult{Requested: len(moves), Failed: []RelinkFailure{}}
	if updater == nil {
		for _, move := range moves {
			result.Failed = append(result.Failed, RelinkFailure{ID: move.ID, Error: "path updater is not configured"})
		}
		return result
	}

	for i, move := range moves {
		if err := ctx.Err(); err != nil {
			result.Skipped = len(moves) - i
			r.logger.Warn("relink interrupted", "remaining", result.Skipped, "err", err)
			break
		}
		if err := updater.UpdateFilePath(ctx, move.ID, move.To); err != nil {
			r.logger.Warn("relink failed", "id", move.ID, "to", move.To, "err", err)
			result.Failed = append(result.Failed, RelinkFailure{ID: move.ID, Error: err.Error()})
			continue
		}
		r.logger.Debug("relinked record", "id", move.ID, "from", move.From, "to", move.To)
		result.Applied = append(result.Applied, move)
	}

	r.logger.Info("relink complete",
		"requested", result.Requested,
		"applied", len(result.Applied),
		"failed", len(result.Failed),
	)
	return result
}

func (r *Reconciler) attachStats(ctx context.Context, c *Classification) error {
	stat := func(entries []Entry, name func(Entry) string) error {
		for i := range entries {
			info, err := r.blobs.Stat(ctx, name(entries[i]))
			if err != nil {
				return fmt.Errorf("%w: stat %s: %v", ErrDirectoryUnreadable, name(entries[i]), err)
			}
			entries[i].Blob = &info
			entries[i].SizeMismatch = entries[i].Record.FileSize > 0 && entries[i].Record.FileSize != info.SizeBytes
		}
		return nil
	}
	if err := stat(c.Consistent, func(e Entry) string { return e.Record.LookupKey() }); err != nil {
		return err
	}
	return stat(c.Relocatable, func(e Entry) string { return e.SuggestedPath })
}

func uniqueIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
