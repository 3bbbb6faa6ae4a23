package models

import (
	"strings"
	"time"
)

// Patient owns uploaded files. Deleting a patient deletes its file records.
type Patient struct {
	ID        int64     `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// FileRecord is one row of the file table describing an uploaded patient file.
//
// FilePath is meant to be the blob name in the content store but is populated
// inconsistently: sometimes a UUID, sometimes the original file name, sometimes
// empty.
type FileRecord struct {
	ID        int64     `json:"id" yaml:"id"`
	PatientID int64     `json:"patient_id" yaml:"patient_id"`
	FileName  string    `json:"file_name" yaml:"file_name"`
	FilePath  string    `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	FileType  string    `json:"file_type,omitempty" yaml:"file_type,omitempty"`
	FileSize  int64     `json:"file_size" yaml:"file_size"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// LookupKey returns the blob name the record points at, byte for byte.
// Records with a blank file_path fall back to file_name, which is what the
// upload handler stored before file_path existed. Blank means empty after
// trimming; the returned key itself is never trimmed.
func (f FileRecord) LookupKey() string {
	if strings.TrimSpace(f.FilePath) != "" {
		return f.FilePath
	}
	if strings.TrimSpace(f.FileName) != "" {
		return f.FileName
	}
	return ""
}
