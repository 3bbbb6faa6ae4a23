package reconcile

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"filerecon/internal/blobstore"
	"filerecon/internal/models"
	"filerecon/internal/store"
)

type fakeRecords struct {
	files     []models.FileRecord
	listErr   error
	deleteErr map[int64]error
	deleted   []int64
	updated   map[int64]string
}

func (f *fakeRecords) ListFiles(ctx context.Context) ([]models.FileRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.FileRecord(nil), f.files...), nil
}

func (f *fakeRecords) DeleteFile(ctx context.Context, id int64) error {
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	kept := f.files[:0]
	for _, file := range f.files {
		if file.ID != id {
			kept = append(kept, file)
		}
	}
	f.files = kept
	return nil
}

func (f *fakeRecords) UpdateFilePath(ctx context.Context, id int64, path string) error {
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	if f.updated == nil {
		f.updated = map[int64]string{}
	}
	f.updated[id] = path
	return nil
}

type fakeBlobs struct {
	names     []string
	sizes     map[string]int64
	listErr   error
	listCalls int
}

func (f *fakeBlobs) List(ctx context.Context) ([]string, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.names, nil
}

func (f *fakeBlobs) Exists(ctx context.Context, name string) (bool, error) {
	for _, n := range f.names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBlobs) Stat(ctx context.Context, name string) (models.BlobInfo, error) {
	size, ok := f.sizes[name]
	if !ok {
		return models.BlobInfo{}, blobstore.ErrNotFound
	}
	return models.BlobInfo{Name: name, SizeBytes: size}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scenarioRecords() []models.FileRecord {
	return []models.FileRecord{
		{ID: 1, PatientID: 1, FileName: "abc.dcm", FilePath: "abc.dcm", FileSize: 10},
		{ID: 2, PatientID: 1, FileName: "xyz.png", FilePath: "xyz", FileSize: 20},
		{ID: 3, PatientID: 1, FileName: "missing.pdf", FilePath: "missing"},
	}
}

func TestClassifyScenario(t *testing.T) {
	records := scenarioRecords()
	got := Classify(records, []string{"abc.dcm", "xyz.png"}, nil)

	want := Classification{
		Consistent:  []Entry{{Record: records[0], Class: Consistent}},
		Relocatable: []Entry{{Record: records[1], Class: Relocatable, SuggestedPath: "xyz.png"}},
		Orphaned:    []Entry{{Record: records[2], Class: Orphaned}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("classification mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyProperties(t *testing.T) {
	listing := []string{"a.pdf", "b-1", "b.png", "c.dcm", "d"}
	records := []models.FileRecord{
		{ID: 1, FilePath: "a.pdf"},
		{ID: 2, FilePath: "b"},
		{ID: 3, FilePath: "c.jpg"},
		{ID: 4, FilePath: "e"},
		{ID: 5, FileName: "d"},
		{ID: 6},
		{ID: 7, FilePath: "d"},
	}

	got := Classify(records, listing, PrefixMatcher{})

	classOf := map[int64]Class{}
	for _, entries := range [][]Entry{got.Consistent, got.Relocatable, got.Orphaned} {
		for _, entry := range entries {
			if _, dup := classOf[entry.Record.ID]; dup {
				t.Fatalf("record %d classified twice", entry.Record.ID)
			}
			classOf[entry.Record.ID] = entry.Class
		}
	}
	if len(classOf) != len(records) {
		t.Fatalf("expected every record classified, got %d of %d", len(classOf), len(records))
	}

	want := map[int64]Class{
		1: Consistent,
		2: Relocatable,
		3: Relocatable,
		4: Orphaned,
		5: Consistent,
		6: Orphaned,
		7: Consistent,
	}
	if diff := cmp.Diff(want, classOf); diff != "" {
		t.Fatalf("classes mismatch (-want +got):\n%s", diff)
	}

	suggested := map[int64]string{}
	for _, entry := range got.Relocatable {
		suggested[entry.Record.ID] = entry.SuggestedPath
	}
	if diff := cmp.Diff(map[int64]string{2: "b.png", 3: "c.dcm"}, suggested); diff != "" {
		t.Fatalf("suggestions mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyComparesNamesByteForByte(t *testing.T) {
	records := []models.FileRecord{
		{ID: 1, FilePath: "scan.dcm "},
		{ID: 2, FilePath: " report.pdf"},
		{ID: 3, FilePath: "   ", FileName: "notes.txt\t"},
	}
	got := Classify(records, []string{"scan.dcm ", "report.pdf", "notes.txt\t"}, nil)

	want := Classification{
		Consistent: []Entry{
			{Record: records[0], Class: Consistent},
			{Record: records[2], Class: Consistent},
		},
		Relocatable: []Entry{},
		Orphaned:    []Entry{{Record: records[1], Class: Orphaned}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("classification mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyEmptyInputs(t *testing.T) {
	got := Classify(nil, nil, nil)
	if len(got.Consistent)+len(got.Relocatable)+len(got.Orphaned) != 0 {
		t.Fatalf("expected empty classification, got %#v", got)
	}

	got = Classify(scenarioRecords(), nil, nil)
	if len(got.Orphaned) != 3 {
		t.Fatalf("expected all records orphaned with an empty listing, got %#v", got)
	}
}

func TestRunReportsScenario(t *testing.T) {
	records := &fakeRecords{files: scenarioRecords()}
	blobs := &fakeBlobs{names: []string{"abc.dcm", "xyz.png"}}
	started := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	r := New(records, blobs, WithLogger(quietLogger()), WithClock(func() time.Time { return started }))
	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	wantSummary := Summary{Total: 3, Consistent: 1, Relocatable: 1, Orphaned: 1}
	if diff := cmp.Diff(wantSummary, report.Summary); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
	if !report.DryRun || report.Matcher != MatchModePrefix || report.BlobCount != 2 {
		t.Fatalf("unexpected report header: %#v", report)
	}
	if !report.StartedAt.Equal(started) {
		t.Fatalf("expected started_at %v, got %v", started, report.StartedAt)
	}
	if diff := cmp.Diff([]int64{3}, report.OrphanIDs()); diff != "" {
		t.Fatalf("orphan ids mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Relocation{{ID: 2, From: "xyz", To: "xyz.png"}}, report.Relocations()); diff != "" {
		t.Fatalf("relocations mismatch (-want +got):\n%s", diff)
	}
	if len(records.deleted) != 0 {
		t.Fatalf("run must not delete, deleted %v", records.deleted)
	}
}

func TestRunDirectoryUnreadable(t *testing.T) {
	records := &fakeRecords{files: scenarioRecords()}
	blobs := &fakeBlobs{listErr: errors.New("permission denied")}

	r := New(records, blobs, WithLogger(quietLogger()))
	report, err := r.Sweep(context.Background(), true)
	if !errors.Is(err, ErrDirectoryUnreadable) {
		t.Fatalf("expected ErrDirectoryUnreadable, got %v", err)
	}
	if report != nil {
		t.Fatalf("expected no report, got %#v", report)
	}
	if len(records.deleted) != 0 {
		t.Fatalf("expected zero deletes, got %v", records.deleted)
	}
}

func TestRunStoreUnavailableSkipsBlobStore(t *testing.T) {
	records := &fakeRecords{listErr: errors.New("connection refused")}
	blobs := &fakeBlobs{names: []string{"abc.dcm"}}

	r := New(records, blobs, WithLogger(quietLogger()))
	_, err := r.Sweep(context.Background(), true)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if blobs.listCalls != 0 {
		t.Fatalf("blob store must not be listed when records are unavailable, got %d calls", blobs.listCalls)
	}
}

func TestRunWithBlobStats(t *testing.T) {
	records := &fakeRecords{files: scenarioRecords()}
	blobs := &fakeBlobs{
		names: []string{"abc.dcm", "xyz.png"},
		sizes: map[string]int64{"abc.dcm": 10, "xyz.png": 99},
	}

	r := New(records, blobs, WithLogger(quietLogger()), WithBlobStats())
	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Consistent[0].Blob == nil || report.Consistent[0].SizeMismatch {
		t.Fatalf("expected matching stat for consistent entry, got %#v", report.Consistent[0])
	}
	if report.Relocatable[0].Blob == nil || !report.Relocatable[0].SizeMismatch {
		t.Fatalf("expected size mismatch for relocatable entry, got %#v", report.Relocatable[0])
	}
	if report.Summary.SizeMismatch != 1 {
		t.Fatalf("expected 1 size mismatch, got %d", report.Summary.SizeMismatch)
	}
}

func TestRunStatFailureAborts(t *testing.T) {
	records := &fakeRecords{files: scenarioRecords()}
	blobs := &fakeBlobs{names: []string{"abc.dcm", "xyz.png"}, sizes: map[string]int64{"abc.dcm": 10}}

	r := New(records, blobs, WithLogger(quietLogger()), WithBlobStats())
	if _, err := r.Run(context.Background()); !errors.Is(err, ErrDirectoryUnreadable) {
		t.Fatalf("expected ErrDirectoryUnreadable, got %v", err)
	}
}

func TestCleanupDeletesExactlyRequestedIDs(t *testing.T) {
	records := &fakeRecords{files: scenarioRecords()}
	r := New(records, &fakeBlobs{}, WithLogger(quietLogger()))

	result := r.Cleanup(context.Background(), []int64{3, 3})
	if diff := cmp.Diff([]int64{3}, records.deleted); diff != "" {
		t.Fatalf("deleted mismatch (-want +got):\n%s", diff)
	}
	if result.Requested != 1 || len(result.Deleted) != 1 || len(result.Failed) != 0 {
		t.Fatalf("unexpected result %#v", result)
	}

	remaining, _ := records.ListFiles(context.Background())
	ids := []int64{}
	for _, file := range remaining {
		ids = append(ids, file.ID)
	}
	if diff := cmp.Diff([]int64{1, 2}, ids); diff != "" {
		t.Fatalf("remaining mismatch (-want +got):\n%s", diff)
	}
}

func TestCleanupContinuesAfterDeleteFailure(t *testing.T) {
	records := &fakeRecords{
		files:     scenarioRecords(),
		deleteErr: map[int64]error{2: errors.New("lock timeout")},
	}
	r := New(records, &fakeBlobs{}, WithLogger(quietLogger()))

	result := r.Cleanup(context.Background(), []int64{2, 3})
	want := CleanupResult{
		Requested: 2,
		Deleted:   []int64{3},
		Failed:    []DeleteFailure{{ID: 2, Error: "lock timeout"}},
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Fatalf("cleanup mismatch (-want +got):\n%s", diff)
	}
}

func TestCleanupStopsWhenContextDone(t *testing.T) {
	records := &fakeRecords{files: scenarioRecords()}
	r := New(records, &fakeBlobs{}, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := r.Cleanup(ctx, []int64{1, 2})
	if result.Skipped != 2 || len(records.deleted) != 0 {
		t.Fatalf("expected all ids skipped, got %#v deleted=%v", result, records.deleted)
	}
}

func TestSweepAppliesCleanup(t *testing.T) {
	records := &fakeRecords{files: scenarioRecords()}
	blobs := &fakeBlobs{names: []string{"abc.dcm", "xyz.png"}}
	r := New(records, blobs, WithLogger(quietLogger()))

	dry, err := r.Sweep(context.Background(), false)
	if err != nil {
		t.Fatalf("dry sweep: %v", err)
	}
	if !dry.DryRun || dry.Cleanup != nil || len(records.deleted) != 0 {
		t.Fatalf("dry sweep must not delete: %#v", dry)
	}

	applied, err := r.Sweep(context.Background(), true)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if applied.DryRun || applied.Summary.Deleted != 1 || applied.Summary.DeleteFailed != 0 {
		t.Fatalf("unexpected summary %#v", applied.Summary)
	}
	if diff := cmp.Diff([]int64{3}, records.deleted); diff != "" {
		t.Fatalf("deleted mismatch (-want +got):\n%s", diff)
	}
}

func TestRelink(t *testing.T) {
	records := &fakeRecords{
		files:     scenarioRecords(),
		deleteErr: map[int64]error{9: errors.New("file 9 not found")},
	}
	r := New(records, &fakeBlobs{}, WithLogger(quietLogger()))

	moves := []Relocation{{ID: 2, From: "xyz", To: "xyz.png"}, {ID: 9, From: "gone", To: "gone.png"}}
	result := r.Relink(context.Background(), records, moves)

	if diff := cmp.Diff(moves[:1], result.Applied); diff != "" {
		t.Fatalf("applied mismatch (-want +got):\n%s", diff)
	}
	if len(result.Failed) != 1 || result.Failed[0].ID != 9 {
		t.Fatalf("expected failure for id 9, got %#v", result.Failed)
	}
	if records.updated[2] != "xyz.png" {
		t.Fatalf("expected id 2 updated, got %#v", records.updated)
	}

	nilResult := r.Relink(context.Background(), nil, moves)
	if len(nilResult.Failed) != 2 {
		t.Fatalf("expected all moves to fail without an updater, got %#v", nilResult)
	}
}

// TestReconcileAgainstSQLiteAndLocalDir runs the full scenario against the
// real record store and upload directory.
func TestReconcileAgainstSQLiteAndLocalDir(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	st, err := store.Open(store.Options{Driver: store.DriverSQLite, Path: filepath.Join(root, "clinic.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	patient := &models.Patient{ID: 1, Name: "Scenario"}
	if err := st.CreatePatient(ctx, patient); err != nil {
		t.Fatalf("create patient: %v", err)
	}
	for _, file := range scenarioRecords() {
		file := file
		if err := st.CreateFile(ctx, &file); err != nil {
			t.Fatalf("create file %d: %v", file.ID, err)
		}
	}

	dir, err := blobstore.NewLocalDir(filepath.Join(root, "uploads"))
	if err != nil {
		t.Fatalf("local dir: %v", err)
	}
	for _, name := range []string{"abc.dcm", "xyz.png"} {
		if _, err := dir.Put(ctx, name, bytes.NewBufferString(name)); err != nil {
			t.Fatalf("put %s: %v", name, err)
		}
	}

	r := New(st, dir, WithLogger(quietLogger()))
	report, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff([]int64{3}, report.OrphanIDs()); diff != "" {
		t.Fatalf("orphans mismatch (-want +got):\n%s", diff)
	}

	result := r.Cleanup(ctx, report.OrphanIDs())
	if len(result.Deleted) != 1 {
		t.Fatalf("expected 1 delete, got %#v", result)
	}
	again := r.Cleanup(ctx, []int64{3})
	if len(again.Failed) != 0 {
		t.Fatalf("repeated cleanup must not fail: %#v", again)
	}

	relinked := r.Relink(ctx, st, report.Relocations())
	if len(relinked.Applied) != 1 {
		t.Fatalf("expected 1 relink, got %#v", relinked)
	}

	after, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	wantSummary := Summary{Total: 2, Consistent: 2}
	if diff := cmp.Diff(wantSummary, after.Summary, cmpopts.IgnoreFields(Summary{}, "SizeMismatch")); diff != "" {
		t.Fatalf("summary after repair mismatch (-want +got):\n%s", diff)
	}
}
