package reconcile

import "time"

// Summary counts the outcome of a pass and of any cleanup applied with it.
type Summary struct {
	Total        int `json:"total" yaml:"total"`
	Consistent   int `json:"consistent" yaml:"consistent"`
	Relocatable  int `json:"relocatable" yaml:"relocatable"`
	Orphaned     int `json:"orphaned" yaml:"orphaned"`
	SizeMismatch int `json:"size_mismatch" yaml:"size_mismatch"`
	Deleted      int `json:"deleted" yaml:"deleted"`
	DeleteFailed int `json:"delete_failed" yaml:"delete_failed"`
}

// Report is the result of one reconciliation pass.
type Report struct {
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Matcher    string    `json:"matcher" yaml:"matcher"`
	BlobCount  int       `json:"blob_count" yaml:"blob_count"`
	DryRun     bool      `json:"dry_run" yaml:"dry_run"`
	Summary    Summary   `json:"summary" yaml:"summary"`

	Classification `yaml:",inline"`

	Cleanup *CleanupResult `json:"cleanup,omitempty" yaml:"cleanup,omitempty"`
}

// Relocation moves one record from its current path to a suggested blob.
type Relocation struct {
	ID   int64  `json:"id" yaml:"id"`
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// CleanupResult reports one cleanup run.
type CleanupResult struct {
	Requested int             `json:"requested" yaml:"requested"`
	Deleted   []int64         `json:"deleted" yaml:"deleted"`
	Failed    []DeleteFailure `json:"failed" yaml:"failed"`
	Skipped   int             `json:"skipped" yaml:"skipped"`
}

// RelinkResult reports one relink run.
type RelinkResult struct {
	Requested int             `json:"requested" yaml:"requested"`
	Applied   []Relocation    `json:"applied" yaml:"applied"`
	Failed    []RelinkFailure `json:"failed" yaml:"failed"`
	Skipped   int             `json:"skipped" yaml:"skipped"`
}

func newReport(c Classification, matcher string, blobCount int) *Report {
	report := &Report{
		Matcher:        matcher,
		BlobCount:      blobCount,
		DryRun:         true,
		Classification: c,
	}
	report.Summary = Summary{
		Total:       len(c.Consistent) + len(c.Relocatable) + len(c.Orphaned),
		Consistent:  len(c.Consistent),
		Relocatable: len(c.Relocatable),
		Orphaned:    len(c.Orphaned),
	}
	for _, entries := range [][]Entry{c.Consistent, c.Relocatable} {
		for _, entry := range entries {
			if entry.SizeMismatch {
				report.Summary.SizeMismatch++
			}
		}
	}
	return report
}

// OrphanIDs returns the ids of the orphaned records in record order.
func (r *Report) OrphanIDs() []int64 {
	ids := make([]int64, 0, len(r.Orphaned))
	for _, entry := range r.Orphaned {
		ids = append(ids, entry.Record.ID)
	}
	return ids
}

// Relocations returns the suggested moves of the relocatable records.
func (r *Report) Relocations() []Relocation {
	moves := make([]Relocation, 0, len(r.Relocatable))
	for _, entry := range r.Relocatable {
		moves = append(moves, Relocation{ID: entry.Record.ID, From: entry.Record.FilePath, To: entry.SuggestedPath})
	}
	return moves
}

// ApplyCleanup folds a cleanup result into the report.
func (r *Report) ApplyCleanup(result CleanupResult) {
	r.DryRun = false
	r.Cleanup = &result
	r.Summary.Deleted = len(result.Deleted)
	r.Summary.DeleteFailed = len(result.Failed)
}
