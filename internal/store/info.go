package store

import (
	"context"
)

// Info summarizes the record tables.
type Info struct {
	Driver           string `json:"driver" yaml:"driver"`
	SchemaVersion    int    `json:"schema_version" yaml:"schema_version"`
	TotalPatients    int    `json:"total_patients" yaml:"total_patients"`
	TotalFiles       int    `json:"total_files" yaml:"total_files"`
	FilesWithoutPath int    `json:"files_without_path" yaml:"files_without_path"`
}

// StoreInfo counts patients and files. SchemaVersion is only tracked for sqlite.
func (s *Store) StoreInfo(ctx context.Context) (*Info, error) {
	info := &Info{Driver: s.dialect.name}

	if s.dialect.name == DriverSQLite {
		version, err := currentVersion(s.db)
		if err != nil {
			return nil, err
		}
		info.SchemaVersion = version
	}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM patient", &info.TotalPatients},
		{"SELECT COUNT(*) FROM file", &info.TotalFiles},
		{"SELECT COUNT(*) FROM file WHERE file_path IS NULL OR file_path = ''", &info.FilesWithoutPath},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	return info, nil
}
