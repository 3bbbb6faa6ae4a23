package reconcile

import "testing"

func TestPrefixMatcherRelocate(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		listing []string
		want    string
		wantOK  bool
	}{
		{name: "missing extension", key: "xyz", listing: []string{"abc.dcm", "xyz.png"}, want: "xyz.png", wantOK: true},
		{name: "shared stem different extension", key: "scan.jpg", listing: []string{"scan.jpeg"}, want: "scan.jpeg", wantOK: true},
		{name: "starts with key", key: "report", listing: []string{"report-final"}, want: "report-final", wantOK: true},
		{name: "prefers extension over listing order", key: "xyz", listing: []string{"xyz-copy", "xyz.png"}, want: "xyz.png", wantOK: true},
		{name: "first extension candidate wins", key: "xyz", listing: []string{"xyz.jpg", "xyz.png"}, want: "xyz.jpg", wantOK: true},
		{name: "first candidate when none has extension", key: "xyz", listing: []string{"xyz-1", "xyz-2"}, want: "xyz-1", wantOK: true},
		{name: "no candidate", key: "missing", listing: []string{"abc.dcm", "xyz.png"}},
		{name: "empty key", key: "", listing: []string{"abc.dcm"}},
		{name: "empty stem does not match dotfiles", key: ".env", listing: []string{".profile"}},
		{name: "empty listing", key: "xyz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PrefixMatcher{}.Relocate(tt.key, tt.listing)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v (%q)", tt.wantOK, ok, got)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestStrictMatcherRelocate(t *testing.T) {
	const id = "5f1c3c1e-6a43-4b8e-9d0b-0c3c2f9b7a11"

	tests := []struct {
		name    string
		key     string
		listing []string
		want    string
		wantOK  bool
	}{
		{name: "uuid gains extension", key: id, listing: []string{id + ".dcm"}, want: id + ".dcm", wantOK: true},
		{name: "uuid extension changed", key: id + ".jpg", listing: []string{id + ".jpeg"}, want: id + ".jpeg", wantOK: true},
		{name: "uuid case differs", key: id, listing: []string{"5F1C3C1E-6A43-4B8E-9D0B-0C3C2F9B7A11.png"}, want: "5F1C3C1E-6A43-4B8E-9D0B-0C3C2F9B7A11.png", wantOK: true},
		{name: "shared uuid prefix is not identity", key: id, listing: []string{"5f1c3c1e-0000-4000-8000-000000000000.dcm"}},
		{name: "non uuid key never relocates", key: "xyz", listing: []string{"xyz.png"}},
		{name: "blob starting with uuid but longer", key: id, listing: []string{id + "-thumb.png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := StrictMatcher{}.Relocate(tt.key, tt.listing)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("expected (%q, %v), got (%q, %v)", tt.want, tt.wantOK, got, ok)
			}
		})
	}
}

func TestMatcherFor(t *testing.T) {
	for mode, want := range map[string]string{"": MatchModePrefix, "PREFIX": MatchModePrefix, " strict ": MatchModeStrict} {
		m, err := MatcherFor(mode)
		if err != nil {
			t.Fatalf("matcher for %q: %v", mode, err)
		}
		if m.Name() != want {
			t.Fatalf("expected %q for %q, got %q", want, mode, m.Name())
		}
	}
	if _, err := MatcherFor("fuzzy"); err == nil {
		t.Fatal("expected unknown mode error")
	}
}
