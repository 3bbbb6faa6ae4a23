package models

import "time"

// BlobInfo is the filesystem stat of one stored blob.
type BlobInfo struct {
	Name      string    `json:"name" yaml:"name"`
	SizeBytes int64     `json:"size_bytes" yaml:"size_bytes"`
	ModTime   time.Time `json:"mod_time" yaml:"mod_time"`
}
