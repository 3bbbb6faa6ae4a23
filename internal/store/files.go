package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"filerecon/internal/models"
)

const fileColumns = "id, patient_id, file_name, file_path, file_type, file_size, created_at"

// CreateFile inserts one file row. A zero ID lets the database assign one; the
// assigned id is written back to file.ID.
func (s *Store) CreateFile(ctx context.Context, file *models.FileRecord) error {
	if file == nil {
		return fmt.Errorf("file is required")
	}
	// Names are blob keys and are stored as given; only blank paths become NULL.
	if strings.TrimSpace(file.FilePath) == "" {
		file.FilePath = ""
	}
	if strings.TrimSpace(file.FileName) == "" {
		return fmt.Errorf("file_name is required")
	}
	if file.PatientID <= 0 {
		return fmt.Errorf("patient_id is required")
	}
	if file.FileSize < 0 {
		return fmt.Errorf("file_size must be >= 0")
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}

	columns := "patient_id, file_name, file_path, file_type, file_size, created_at"
	args := []any{
		file.PatientID,
		file.FileName,
		nullIfEmpty(file.FilePath),
		nullIfEmpty(strings.TrimSpace(file.FileType)),
		file.FileSize,
		s.dialect.timeArg(file.CreatedAt),
	}
	if file.ID > 0 {
		columns = "id, " + columns
		args = append([]any{file.ID}, args...)
	}

	id, err := s.insert(ctx, "file", columns, args)
	if err != nil {
		return err
	}
	file.ID = id
	return nil
}

// GetFile returns one file row by id, or nil when absent.
func (s *Store) GetFile(ctx context.Context, id int64) (*models.FileRecord, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT `+fileColumns+` FROM file WHERE id = ?`), id)
	return scanFile(row)
}

// ListFiles returns every file row ordered by id.
func (s *Store) ListFiles(ctx context.Context) ([]models.FileRecord, error) {
	return s.queryFiles(ctx, `SELECT `+fileColumns+` FROM file ORDER BY id ASC`)
}

// ListFilesByPatient returns the file rows of one patient ordered by id.
func (s *Store) ListFilesByPatient(ctx context.Context, patientID int64) ([]models.FileRecord, error) {
	return s.queryFiles(ctx, `SELECT `+fileColumns+` FROM file WHERE patient_id = ? ORDER BY id ASC`, patientID)
}

// UpdateFilePath points a file row at a different blob name. The name is
// stored exactly as given.
func (s *Store) UpdateFilePath(ctx context.Context, id int64, path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("file_path is required")
	}
	res, err := s.db.ExecContext(ctx, s.dialect.rebind("UPDATE file SET file_path = ? WHERE id = ?"), path, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("file %d not found", id)
	}
	return nil
}

// DeleteFile deletes one file row. Deleting a missing id is not an error.
func (s *Store) DeleteFile(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.dialect.rebind("DELETE FROM file WHERE id = ?"), id)
	return err
}

func (s *Store) queryFiles(ctx context.Context, query string, args ...any) ([]models.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []models.FileRecord{}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		if file != nil {
			files = append(files, *file)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

// insert runs one INSERT and returns the row id.
func (s *Store) insert(ctx context.Context, table, columns string, args []any) (int64, error) {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, columns, placeholders(len(args)))
	if s.dialect.returning {
		var id int64
		if err := s.db.QueryRowContext(ctx, s.dialect.rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanFile(scanner interface {
	Scan(dest ...any) error
}) (*models.FileRecord, error) {
	file := models.FileRecord{}

	var filePath, fileType sql.NullString
	var fileSize sql.NullInt64
	var createdAt nullTime

	err := scanner.Scan(
		&file.ID,
		&file.PatientID,
		&file.FileName,
		&filePath,
		&fileType,
		&fileSize,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	file.FilePath = filePath.String
	file.FileType = fileType.String
	file.FileSize = fileSize.Int64
	file.CreatedAt = createdAt.Time

	return &file, nil
}

func placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimRight(strings.Repeat("?,", count), ",")
}
