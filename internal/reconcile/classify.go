package reconcile

import "filerecon/internal/models"

// Class is the outcome of reconciling one record.
type Class string

const (
	// Consistent records have a blob named exactly like their file path.
	Consistent Class = "consistent"
	// Relocatable records have no exact blob but a related one.
	Relocatable Class = "relocatable"
	// Orphaned records have no blob at all.
	Orphaned Class = "orphaned"
)

// Entry is one classified record.
type Entry struct {
	Record models.FileRecord `json:"record" yaml:"record"`
	Class  Class             `json:"class" yaml:"class"`
	// SuggestedPath is set for relocatable records.
	SuggestedPath string `json:"suggested_path,omitempty" yaml:"suggested_path,omitempty"`
	// Blob and SizeMismatch are only set when blob stats are requested.
	Blob         *models.BlobInfo `json:"blob,omitempty" yaml:"blob,omitempty"`
	SizeMismatch bool             `json:"size_mismatch,omitempty" yaml:"size_mismatch,omitempty"`
}

// Classification holds the three disjoint result sets of a pass, each in
// record order.
type Classification struct {
	Consistent  []Entry `json:"consistent" yaml:"consistent"`
	Relocatable []Entry `json:"relocatable" yaml:"relocatable"`
	Orphaned    []Entry `json:"orphaned" yaml:"orphaned"`
}

// Classify sorts records into consistent, relocatable and orphaned sets. It is
// pure: exact names are checked against a set built once from listing, and
// the matcher scans the full listing only on a miss. A nil matcher selects
// PrefixMatcher.
func Classify(records []models.FileRecord, listing []string, matcher Matcher) Classification {
	if matcher == nil {
		matcher = PrefixMatcher{}
	}
	names := make(map[string]struct{}, len(listing))
	for _, name := range listing {
		names[name] = struct{}{}
	}

	out := Classification{
		Consistent:  []Entry{},
		Relocatable: []Entry{},
		Orphaned:    []Entry{},
	}
	for _, record := range records {
		key := record.LookupKey()
		if key == "" {
			out.Orphaned = append(out.Orphaned, Entry{Record: record, Class: Orphaned})
			continue
		}
		if _, ok := names[key]; ok {
			out.Consistent = append(out.Consistent, Entry{Record: record, Class: Consistent})
			continue
		}
		if suggested, ok := matcher.Relocate(key, listing); ok {
			out.Relocatable = append(out.Relocatable, Entry{Record: record, Class: Relocatable, SuggestedPath: suggested})
			continue
		}
		out.Orphaned = append(out.Orphaned, Entry{Record: record, Class: Orphaned})
	}
	return out
}
