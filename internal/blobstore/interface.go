package blobstore

import (
	"context"
	"errors"
	"io"

	"filerecon/internal/models"
)

// ErrNotFound is returned by Stat when no blob has the requested name.
var ErrNotFound = errors.New("blob not found")

// BlobStore is the read surface the reconciler needs from a flat blob namespace.
type BlobStore interface {
	// List returns every blob name in lexical order.
	List(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, name string) (bool, error)
	Stat(ctx context.Context, name string) (models.BlobInfo, error)
}

// Writer stores and removes blobs.
type Writer interface {
	Put(ctx context.Context, name string, r io.Reader) (models.BlobInfo, error)
	Delete(ctx context.Context, name string) error
}
