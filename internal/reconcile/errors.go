package reconcile

import "errors"

var (
	// ErrStoreUnavailable means the record store could not be read. The pass
	// stops before touching the blob store.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrDirectoryUnreadable means the blob namespace could not be listed or
	// a matched blob could not be stat'ed. Nothing is deleted.
	ErrDirectoryUnreadable = errors.New("blob directory unreadable")
)

// DeleteFailure records one record whose delete failed during cleanup.
type DeleteFailure struct {
	ID    int64  `json:"id" yaml:"id"`
	Error string `json:"error" yaml:"error"`
}

// RelinkFailure records one record whose file_path update failed.
type RelinkFailure struct {
	ID    int64  `json:"id" yaml:"id"`
	Error string `json:"error" yaml:"error"`
}
