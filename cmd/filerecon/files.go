package main

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"filerecon/internal/blobstore"
	"filerecon/internal/config"
	"filerecon/internal/models"
	"filerecon/internal/store"
)

func newFilesCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Inspect and manage file records",
	}
	cmd.AddCommand(
		newFilesListCmd(cfg, out),
		newFilesShowCmd(cfg, out),
		newFilesUploadCmd(cfg, out),
		newFilesRmCmd(cfg, out),
	)
	return cmd
}

func newFilesListCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	var patientID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List file records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), cfg, func(st *store.Store) error {
				var files []models.FileRecord
				var err error
				if patientID > 0 {
					files, err = st.ListFilesByPatient(cmd.Context(), patientID)
				} else {
					files, err = st.ListFiles(cmd.Context())
				}
				if err != nil {
					return err
				}

				if out.structured() {
					return writeStructured(files)
				}
				writeFileTable(files)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&patientID, "patient", 0, "only list files of this patient id")
	return cmd
}

type fileDetail struct {
	models.FileRecord `yaml:",inline"`
	BlobExists        bool `json:"blob_exists" yaml:"blob_exists"`
}

func newFilesShowCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one file record",
		Args:  requireOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), cfg, func(st *store.Store) error {
				file, err := st.GetFile(cmd.Context(), id)
				if err != nil {
					return err
				}
				if file == nil {
					return fmt.Errorf("file %d not found", id)
				}
				exists, err := blobExists(cmd.Context(), cfg, *file)
				if err != nil {
					return err
				}
				if out.structured() {
					return writeStructured(fileDetail{FileRecord: *file, BlobExists: exists})
				}
				writeFileDetail(*file, [2]string{"blob", blobState(exists)})
				return nil
			})
		},
	}
}

// blobExists reports whether the blob the record points at is present.
func blobExists(ctx context.Context, cfg *config.Config, file models.FileRecord) (bool, error) {
	key := file.LookupKey()
	if key == "" {
		return false, nil
	}
	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return false, err
	}
	exists, err := blobs.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check blob %s: %w", key, err)
	}
	return exists, nil
}

func blobState(exists bool) string {
	if exists {
		return "present"
	}
	return "missing"
}

// sharedBlobUsers returns the ids of other records pointing at the same blob.
func sharedBlobUsers(ctx context.Context, st *store.Store, file models.FileRecord) ([]int64, error) {
	files, err := st.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, other := range files {
		if other.ID != file.ID && other.LookupKey() == file.LookupKey() {
			ids = append(ids, other.ID)
		}
	}
	return ids, nil
}

func newFilesUploadCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	var patientID int64
	var fileType string

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Store a file in the upload directory and record it for a patient",
		Args:  requireExactlyArgs(1, "exactly one file path is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if patientID <= 0 {
				return fmt.Errorf("--patient is required")
			}
			writer, err := openBlobWriter(cfg)
			if err != nil {
				return err
			}

			return withStore(cmd.Context(), cfg, func(st *store.Store) error {
				record, err := uploadFile(cmd.Context(), st, writer, patientID, args[0], fileType)
				if err != nil {
					return err
				}
				if out.structured() {
					return writeStructured(record)
				}
				writeFileDetail(*record)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&patientID, "patient", 0, "patient id owning the file")
	cmd.Flags().StringVar(&fileType, "type", "", "media type (default: from the file extension)")
	return cmd
}

// uploadFile writes the blob under a fresh UUID name keeping the source
// extension, then inserts the record. A failed insert removes the blob again.
func uploadFile(ctx context.Context, st *store.Store, writer blobstore.Writer, patientID int64, path, fileType string) (*models.FileRecord, error) {
	patient, err := st.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, fmt.Errorf("patient %d not found", patientID)
	}

	src, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(path))
	name := uuid.NewString() + ext
	if fileType == "" {
		fileType = mime.TypeByExtension(ext)
	}

	info, err := writer.Put(ctx, name, src)
	if err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	record := &models.FileRecord{
		PatientID: patientID,
		FileName:  filepath.Base(path),
		FilePath:  name,
		FileType:  fileType,
		FileSize:  info.SizeBytes,
	}
	if err := st.CreateFile(ctx, record); err != nil {
		if delErr := writer.Delete(ctx, name); delErr != nil {
			slog.Warn("uploaded blob left behind", "name", name, "err", delErr)
		}
		return nil, fmt.Errorf("record file: %w", err)
	}
	return record, nil
}

func newFilesRmCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	var withBlob bool
	var yes bool

	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete one file record",
		Args:  requireOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var writer blobstore.Writer
			if withBlob {
				if writer, err = openBlobWriter(cfg); err != nil {
					return err
				}
			}

			return withStore(cmd.Context(), cfg, func(st *store.Store) error {
				file, err := st.GetFile(cmd.Context(), id)
				if err != nil {
					return err
				}
				if file == nil {
					return fmt.Errorf("file %d not found", id)
				}
				if writer != nil && file.LookupKey() != "" {
					users, err := sharedBlobUsers(cmd.Context(), st, *file)
					if err != nil {
						return err
					}
					if len(users) > 0 {
						return fmt.Errorf("blob %s is also used by records %s; drop --blob to keep it", file.LookupKey(), joinIDs(users))
					}
				}

				ok, err := approveDestructive(yes, fmt.Sprintf("Delete file record %d (%s)", id, file.FileName))
				if err != nil {
					return err
				}
				if !ok {
					return writePlain("would delete file %d\n", id)
				}

				if err := st.DeleteFile(cmd.Context(), id); err != nil {
					return err
				}
				if writer != nil && file.LookupKey() != "" {
					if err := writer.Delete(cmd.Context(), file.LookupKey()); err != nil {
						return fmt.Errorf("record deleted but blob %s was not: %w", file.LookupKey(), err)
					}
				}

				if out.structured() {
					return writeStructured(map[string]any{"deleted": id})
				}
				return writePlain("deleted file %d\n", id)
			})
		},
	}

	cmd.Flags().BoolVar(&withBlob, "blob", false, "also delete the blob the record points at")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without asking")
	return cmd
}
