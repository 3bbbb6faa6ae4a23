package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"filerecon/internal/models"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(Options{Driver: DriverSQLite, Path: path})
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testPatient(t *testing.T, st *Store, name string) *models.Patient {
	t.Helper()
	patient := &models.Patient{Name: name}
	if err := st.CreatePatient(context.Background(), patient); err != nil {
		t.Fatalf("create patient %s: %v", name, err)
	}
	return patient
}

func TestCreateAndGetFile(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	patient := testPatient(t, st, "Ada Lovelace")

	file := &models.FileRecord{
		PatientID: patient.ID,
		FileName:  "chest.dcm",
		FilePath:  "5f1c3c1e-6a43-4b8e-9d0b-0c3c2f9b7a11.dcm",
		FileType:  "application/dicom",
		FileSize:  2048,
		CreatedAt: now,
	}
	if err := st.CreateFile(ctx, file); err != nil {
		t.Fatalf("create: %v", err)
	}
	if file.ID == 0 {
		t.Fatal("expected assigned id")
	}

	got, err := st.GetFile(ctx, file.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected file, got nil")
	}
	if got.FilePath != file.FilePath {
		t.Fatalf("expected file_path %q, got %q", file.FilePath, got.FilePath)
	}
	if got.FileSize != 2048 {
		t.Fatalf("expected size 2048, got %d", got.FileSize)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at %v, got %v", now, got.CreatedAt)
	}
}

func TestCreateFileValidation(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	patient := testPatient(t, st, "Grace Hopper")

	tests := []struct {
		name string
		file *models.FileRecord
	}{
		{name: "nil", file: nil},
		{name: "missing name", file: &models.FileRecord{PatientID: patient.ID}},
		{name: "missing patient", file: &models.FileRecord{FileName: "a.png"}},
		{name: "negative size", file: &models.FileRecord{PatientID: patient.ID, FileName: "a.png", FileSize: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := st.CreateFile(ctx, tt.file); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestCreateFileRejectsUnknownPatient(t *testing.T) {
	st := testStore(t)
	err := st.CreateFile(context.Background(), &models.FileRecord{PatientID: 999, FileName: "a.png"})
	if err == nil {
		t.Fatal("expected foreign key error")
	}
}

func TestFilePathNullRoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	patient := testPatient(t, st, "Alan Turing")

	file := &models.FileRecord{PatientID: patient.ID, FileName: "notes.txt"}
	if err := st.CreateFile(ctx, file); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := st.GetFile(ctx, file.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FilePath != "" || got.FileType != "" {
		t.Fatalf("expected empty path and type, got %#v", got)
	}
	if got.LookupKey() != "notes.txt" {
		t.Fatalf("expected lookup key to fall back to file name, got %q", got.LookupKey())
	}
}

func TestGetFileMissing(t *testing.T) {
	st := testStore(t)
	got, err := st.GetFile(context.Background(), 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
}

func TestListFiles(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	first := testPatient(t, st, "First")
	second := testPatient(t, st, "Second")

	for _, file := range []*models.FileRecord{
		{ID: 3, PatientID: second.ID, FileName: "c.png", FilePath: "c.png"},
		{ID: 1, PatientID: first.ID, FileName: "a.png", FilePath: "a.png"},
		{ID: 2, PatientID: first.ID, FileName: "b.png", FilePath: "b"},
	} {
		if err := st.CreateFile(ctx, file); err != nil {
			t.Fatalf("create %d: %v", file.ID, err)
		}
	}

	all, err := st.ListFiles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 files, got %d", len(all))
	}
	for i, file := range all {
		if file.ID != int64(i+1) {
			t.Fatalf("expected id order 1,2,3, got %d at %d", file.ID, i)
		}
	}

	byPatient, err := st.ListFilesByPatient(ctx, first.ID)
	if err != nil {
		t.Fatalf("list by patient: %v", err)
	}
	if len(byPatient) != 2 {
		t.Fatalf("expected 2 files for first patient, got %d", len(byPatient))
	}
}

func TestUpdateFilePath(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	patient := testPatient(t, st, "Patient")

	file := &models.FileRecord{PatientID: patient.ID, FileName: "xyz.png", FilePath: "xyz"}
	if err := st.CreateFile(ctx, file); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := st.UpdateFilePath(ctx, file.ID, "xyz.png"); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := st.GetFile(ctx, file.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FilePath != "xyz.png" {
		t.Fatalf("expected updated path, got %q", got.FilePath)
	}

	if err := st.UpdateFilePath(ctx, 999, "nope.png"); err == nil {
		t.Fatal("expected error for missing file")
	}
	if err := st.UpdateFilePath(ctx, file.ID, "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestFilePathStoredVerbatim(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	patient := testPatient(t, st, "Patient")

	file := &models.FileRecord{PatientID: patient.ID, FileName: " scan.dcm", FilePath: "scan"}
	if err := st.CreateFile(ctx, file); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.UpdateFilePath(ctx, file.ID, "scan.dcm "); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := st.GetFile(ctx, file.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FilePath != "scan.dcm " {
		t.Fatalf("expected file_path %q, got %q", "scan.dcm ", got.FilePath)
	}
	if got.FileName != " scan.dcm" {
		t.Fatalf("expected file_name %q, got %q", " scan.dcm", got.FileName)
	}
}

func TestDeleteFileIsIdempotent(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	patient := testPatient(t, st, "Patient")

	for _, file := range []*models.FileRecord{
		{ID: 1, PatientID: patient.ID, FileName: "abc.dcm", FilePath: "abc.dcm"},
		{ID: 2, PatientID: patient.ID, FileName: "xyz.png", FilePath: "xyz"},
		{ID: 3, PatientID: patient.ID, FileName: "missing.pdf", FilePath: "missing"},
	} {
		if err := st.CreateFile(ctx, file); err != nil {
			t.Fatalf("create %d: %v", file.ID, err)
		}
	}

	if err := st.DeleteFile(ctx, 3); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.DeleteFile(ctx, 3); err != nil {
		t.Fatalf("second delete should be a noop: %v", err)
	}

	all, err := st.ListFiles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != 1 || all[1].ID != 2 {
		t.Fatalf("expected ids 1 and 2 to remain, got %#v", all)
	}
}

func TestDeletePatientCascadesFiles(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	keep := testPatient(t, st, "Keep")
	drop := testPatient(t, st, "Drop")

	for _, file := range []*models.FileRecord{
		{PatientID: keep.ID, FileName: "keep.png"},
		{PatientID: drop.ID, FileName: "drop-1.png"},
		{PatientID: drop.ID, FileName: "drop-2.png"},
	} {
		if err := st.CreateFile(ctx, file); err != nil {
			t.Fatalf("create %s: %v", file.FileName, err)
		}
	}

	if err := st.DeletePatient(ctx, drop.ID); err != nil {
		t.Fatalf("delete patient: %v", err)
	}

	got, err := st.GetPatient(ctx, drop.ID)
	if err != nil {
		t.Fatalf("get patient: %v", err)
	}
	if got != nil {
		t.Fatal("expected patient to be deleted")
	}

	all, err := st.ListFiles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].PatientID != keep.ID {
		t.Fatalf("expected only the kept patient's file, got %#v", all)
	}
}

func TestStoreInfo(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	info, err := st.StoreInfo(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.SchemaVersion == 0 {
		t.Fatal("expected non-zero schema version")
	}
	if info.Driver != DriverSQLite {
		t.Fatalf("expected sqlite driver, got %q", info.Driver)
	}
	if info.TotalFiles != 0 {
		t.Fatalf("expected 0 files, got %d", info.TotalFiles)
	}

	patient := testPatient(t, st, "Patient")
	for _, file := range []*models.FileRecord{
		{PatientID: patient.ID, FileName: "a.png", FilePath: "a.png"},
		{PatientID: patient.ID, FileName: "b.png"},
	} {
		if err := st.CreateFile(ctx, file); err != nil {
			t.Fatalf("create %s: %v", file.FileName, err)
		}
	}

	info, err = st.StoreInfo(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.TotalPatients != 1 || info.TotalFiles != 2 || info.FilesWithoutPath != 1 {
		t.Fatalf("unexpected info: %#v", info)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Options{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestOpenRemoteRequiresDSN(t *testing.T) {
	for _, driver := range []string{DriverPostgres, DriverMySQL} {
		if _, err := Open(Options{Driver: driver}); err == nil {
			t.Fatalf("expected %s dsn error", driver)
		}
	}
}

// TestRemoteDrivers exercises the clinic database drivers against live
// databases that already carry the patient and file tables.
func TestRemoteDrivers(t *testing.T) {
	cases := []struct {
		driver string
		envKey string
	}{
		{driver: DriverPostgres, envKey: "FILERECON_TEST_POSTGRES_DSN"},
		{driver: DriverMySQL, envKey: "FILERECON_TEST_MYSQL_DSN"},
	}

	for _, tc := range cases {
		t.Run(tc.driver, func(t *testing.T) {
			dsn := os.Getenv(tc.envKey)
			if dsn == "" {
				t.Skipf("%s not set", tc.envKey)
			}
			st, err := Open(Options{Driver: tc.driver, DSN: dsn})
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer st.Close()

			ctx := context.Background()
			if err := st.Ping(ctx); err != nil {
				t.Fatalf("ping: %v", err)
			}
			patient := &models.Patient{Name: "filerecon driver test"}
			if err := st.CreatePatient(ctx, patient); err != nil {
				t.Fatalf("create patient: %v", err)
			}
			defer st.DeletePatient(ctx, patient.ID)

			file := &models.FileRecord{PatientID: patient.ID, FileName: "driver.png", FilePath: "driver"}
			if err := st.CreateFile(ctx, file); err != nil {
				t.Fatalf("create file: %v", err)
			}
			if err := st.UpdateFilePath(ctx, file.ID, "driver.png"); err != nil {
				t.Fatalf("update: %v", err)
			}
			got, err := st.GetFile(ctx, file.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got == nil || got.FilePath != "driver.png" {
				t.Fatalf("unexpected file: %#v", got)
			}
			if err := st.DeleteFile(ctx, file.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
		})
	}
}
