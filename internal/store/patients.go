package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"filerecon/internal/models"
)

// CreatePatient inserts one patient row and writes the assigned id back.
func (s *Store) CreatePatient(ctx context.Context, patient *models.Patient) error {
	if patient == nil {
		return fmt.Errorf("patient is required")
	}
	patient.Name = strings.TrimSpace(patient.Name)
	if patient.Name == "" {
		return fmt.Errorf("patient name is required")
	}
	if patient.CreatedAt.IsZero() {
		patient.CreatedAt = time.Now().UTC()
	}

	columns := "name, created_at"
	args := []any{patient.Name, s.dialect.timeArg(patient.CreatedAt)}
	if patient.ID > 0 {
		columns = "id, " + columns
		args = append([]any{patient.ID}, args...)
	}

	id, err := s.insert(ctx, "patient", columns, args)
	if err != nil {
		return err
	}
	patient.ID = id
	return nil
}

// GetPatient returns one patient by id, or nil when absent.
func (s *Store) GetPatient(ctx context.Context, id int64) (*models.Patient, error) {
	patient := models.Patient{}
	var createdAt nullTime
	err := s.db.QueryRowContext(ctx, s.dialect.rebind("SELECT id, name, created_at FROM patient WHERE id = ?"), id).
		Scan(&patient.ID, &patient.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	patient.CreatedAt = createdAt.Time
	return &patient, nil
}

// DeletePatient deletes a patient; its file rows go with it.
func (s *Store) DeletePatient(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.dialect.rebind("DELETE FROM patient WHERE id = ?"), id)
	return err
}
