package main

import (
	"context"
	"fmt"
	"log/slog"

	"filerecon/internal/blobstore"
	"filerecon/internal/config"
	"filerecon/internal/metrics"
	"filerecon/internal/reconcile"
	"filerecon/internal/store"
)

func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(store.Options{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.DSN,
	})
}

// withStore opens the record store for the duration of fn. An unreachable
// database is reported as reconcile.ErrStoreUnavailable.
func withStore(ctx context.Context, cfg *config.Config, fn func(*store.Store) error) error {
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", reconcile.ErrStoreUnavailable, err)
	}
	defer st.Close()

	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", reconcile.ErrStoreUnavailable, err)
	}
	return fn(st)
}

func openBlobStore(ctx context.Context, cfg *config.Config) (blobstore.BlobStore, error) {
	switch cfg.Blobs.Backend {
	case "s3":
		return blobstore.NewS3BucketFromConfig(ctx, s3BucketConfig(cfg.Blobs.S3))
	case "", "local":
		return blobstore.NewLocalDir(cfg.Blobs.Dir)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Blobs.Backend)
	}
}

func s3BucketConfig(c config.S3Config) blobstore.S3Config {
	return blobstore.S3Config{
		Bucket:          c.Bucket,
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		Prefix:          c.Prefix,
		ForcePathStyle:  c.ForcePathStyle,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
	}
}

// openBlobWriter returns the local upload directory; only it accepts writes.
func openBlobWriter(cfg *config.Config) (*blobstore.LocalDir, error) {
	if cfg.Blobs.Backend != "" && cfg.Blobs.Backend != "local" {
		return nil, fmt.Errorf("blob backend %q is read-only here; uploads need blobs.backend = \"local\"", cfg.Blobs.Backend)
	}
	return blobstore.NewLocalDir(cfg.Blobs.Dir)
}

type reconcileFlags struct {
	strict bool
	stat   bool
}

func newReconciler(ctx context.Context, cfg *config.Config, st *store.Store, flags reconcileFlags) (*reconcile.Reconciler, error) {
	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mode := cfg.Reconcile.MatchMode
	if flags.strict {
		mode = reconcile.MatchModeStrict
	}
	matcher, err := reconcile.MatcherFor(mode)
	if err != nil {
		return nil, err
	}

	opts := []reconcile.Option{
		reconcile.WithMatcher(matcher),
		reconcile.WithLogger(slog.Default()),
	}
	if flags.stat || cfg.Reconcile.StatBlobs {
		opts = append(opts, reconcile.WithBlobStats())
	}
	return reconcile.New(st, blobs, opts...), nil
}

// flushMetrics writes the run gauges when a textfile path is configured.
// Failures are logged and never change the command's outcome.
func flushMetrics(cfg *config.Config, m *metrics.RunMetrics, runErr error) {
	if cfg.Metrics.TextfilePath == "" {
		return
	}
	m.Finish(nowUTC(), runErr)
	if err := m.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
		slog.Warn("metrics textfile not written", "path", cfg.Metrics.TextfilePath, "err", err)
	}
}
