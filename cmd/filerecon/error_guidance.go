package main

import (
	"context"
	"errors"

	"filerecon/internal/blobstore"
	"filerecon/internal/reconcile"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	switch {
	case errors.Is(err, reconcile.ErrStoreUnavailable):
		lines = append(lines,
			"hint: nothing was deleted; the record store could not be read.",
			"hint: check database.driver and database.dsn (FILERECON_DB_DSN or DATABASE_URL).",
		)
	case errors.Is(err, reconcile.ErrDirectoryUnreadable):
		lines = append(lines,
			"hint: nothing was deleted; the upload store could not be listed.",
			"hint: verify blobs.dir (FILERECON_BLOB_DIR or UPLOAD_DIR) exists and is readable.",
		)
	case errors.Is(err, blobstore.ErrNotFound):
		lines = append(lines, "hint: the blob is gone; run filerecon scan to see affected records.")
	case errors.Is(err, errAborted):
		lines = append(lines, "hint: nothing was changed.")
	}

	if errors.Is(err, context.Canceled) {
		lines = append(lines, "hint: interrupted; records not yet processed were left untouched.")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: the operation timed out; check database and storage latency.")
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
