package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"filerecon/internal/config"
	"filerecon/internal/store"
)

type infoResponse struct {
	store.Info   `yaml:",inline"`
	Database     string `json:"database" yaml:"database"`
	BlobBackend  string `json:"blob_backend" yaml:"blob_backend"`
	BlobLocation string `json:"blob_location" yaml:"blob_location"`
	BlobCount    int    `json:"blob_count" yaml:"blob_count"`
	MatchMode    string `json:"match_mode" yaml:"match_mode"`
}

func newInfoCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show database and upload store info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), cfg, func(st *store.Store) error {
				info, err := st.StoreInfo(cmd.Context())
				if err != nil {
					return err
				}
				blobs, err := openBlobStore(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				names, err := blobs.List(cmd.Context())
				if err != nil {
					return err
				}

				resp := infoResponse{
					Info:         *info,
					Database:     databaseLocation(cfg),
					BlobBackend:  cfg.Blobs.Backend,
					BlobLocation: blobLocation(cfg),
					BlobCount:    len(names),
					MatchMode:    cfg.Reconcile.MatchMode,
				}
				if out.structured() {
					return writeStructured(resp)
				}

				writeKeyValues([][2]string{
					{"driver", resp.Driver},
					{"database", resp.Database},
					{"schema_version", strconv.Itoa(resp.SchemaVersion)},
					{"patients", strconv.Itoa(resp.TotalPatients)},
					{"files", strconv.Itoa(resp.TotalFiles)},
					{"files_without_path", strconv.Itoa(resp.FilesWithoutPath)},
					{"blob_backend", resp.BlobBackend},
					{"blob_location", resp.BlobLocation},
					{"blobs", strconv.Itoa(resp.BlobCount)},
					{"match_mode", resp.MatchMode},
				})
				return nil
			})
		},
	}
	return cmd
}

func databaseLocation(cfg *config.Config) string {
	if cfg.Database.Driver == "sqlite" {
		return cfg.Database.Path
	}
	dsn, _ := cfg.Get("database.dsn")
	return dsn
}

func blobLocation(cfg *config.Config) string {
	if cfg.Blobs.Backend == "s3" {
		return "s3://" + cfg.Blobs.S3.Bucket + "/" + cfg.Blobs.S3.Prefix
	}
	return cfg.Blobs.Dir
}
