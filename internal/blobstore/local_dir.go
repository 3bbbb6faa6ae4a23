package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"filerecon/internal/models"
)

const tmpPrefix = ".upload-"

// LocalDir stores blobs as regular files in one flat directory.
type LocalDir struct {
	root string
}

// NewLocalDir returns a LocalDir rooted at root. The directory is not created:
// a missing upload directory must surface as a listing error, never as an
// empty listing.
func NewLocalDir(root string) (*LocalDir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blob directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &LocalDir{root: abs}, nil
}

// Root returns the absolute blob directory.
func (d *LocalDir) Root() string {
	return d.root
}

// List returns the names of the regular files in the directory, sorted.
// In-flight uploads and subdirectories are skipped.
func (d *LocalDir) List(ctx context.Context) ([]string, error) {
	if d == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), tmpPrefix) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether a regular file with name exists.
func (d *LocalDir) Exists(ctx context.Context, name string) (bool, error) {
	_, err := d.Stat(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Stat returns size and modification time of one blob.
func (d *LocalDir) Stat(ctx context.Context, name string) (models.BlobInfo, error) {
	var zero models.BlobInfo
	if d == nil {
		return zero, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	path, err := d.pathFromName(name)
	if err != nil {
		return zero, err
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return zero, err
	}
	if !info.Mode().IsRegular() {
		return zero, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, name)
	}
	return models.BlobInfo{Name: name, SizeBytes: info.Size(), ModTime: info.ModTime().UTC()}, nil
}

// Put streams r into a temporary file and renames it to name, so readers
// never observe a partial blob. An existing blob with the same name is
// replaced.
func (d *LocalDir) Put(ctx context.Context, name string, r io.Reader) (models.BlobInfo, error) {
	var zero models.BlobInfo
	if d == nil {
		return zero, fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return zero, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	dst, err := d.pathFromName(name)
	if err != nil {
		return zero, err
	}
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return zero, err
	}

	tmp, err := os.CreateTemp(d.root, tmpPrefix+"*")
	if err != nil {
		return zero, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := io.Copy(tmp, r); err != nil {
		cleanup()
		return zero, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return zero, err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		cleanup()
		return zero, err
	}

	return d.Stat(ctx, name)
}

// Delete removes one blob. Missing files are ignored.
func (d *LocalDir) Delete(ctx context.Context, name string) error {
	if d == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := d.pathFromName(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (d *LocalDir) pathFromName(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(d.root, name), nil
}

// ValidateName checks that name addresses a direct child of a flat namespace.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("blob name is required")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("invalid blob name %q", name)
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("blob name %q must not contain path separators", name)
	}
	return nil
}

var (
	_ BlobStore = (*LocalDir)(nil)
	_ Writer    = (*LocalDir)(nil)
)
