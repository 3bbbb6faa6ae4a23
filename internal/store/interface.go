package store

import (
	"context"

	"filerecon/internal/models"
)

// FileStore abstracts the clinic's file and patient tables.
type FileStore interface {
	CreatePatient(ctx context.Context, patient *models.Patient) error
	GetPatient(ctx context.Context, id int64) (*models.Patient, error)
	DeletePatient(ctx context.Context, id int64) error
	CreateFile(ctx context.Context, file *models.FileRecord) error
	GetFile(ctx context.Context, id int64) (*models.FileRecord, error)
	ListFiles(ctx context.Context) ([]models.FileRecord, error)
	ListFilesByPatient(ctx context.Context, patientID int64) ([]models.FileRecord, error)
	UpdateFilePath(ctx context.Context, id int64, path string) error
	DeleteFile(ctx context.Context, id int64) error
	StoreInfo(ctx context.Context) (*Info, error)
}

var _ FileStore = (*Store)(nil)
