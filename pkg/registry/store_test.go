package registry

import (
	"os"
	"testing"
	"time"

	"github.com/doclift/doclift/pkg/batch"
)

func testRegistry(jobID string, created time.Time) *Registry {
	return &Registry{
		JobID:          jobID,
		PackagePath:    "/repo/packages/widgets",
		Provider:       "anthropic",
		Model:          "claude-sonnet-4-5",
		CreatedAt:      created,
		SourceRevision: "0b7c2a9",
		Items: []batch.JobItem{
			{StableIndex: 0, FilePath: "src/index.ts", EntryPoint: true, StableID: "src-index-ts"},
			{StableIndex: 1, FilePath: "src/button.ts", StableID: "src-button-ts"},
			{StableIndex: 2, FilePath: "src/label.ts", StableID: "src-label-ts"},
		},
	}
}

func TestStore_WriteGetRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	reg := testRegistry("job-1", now)

	if err := s.Write(reg); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	got, err := s.Get("job-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.JobID != reg.JobID {
		t.Fatalf("job_id mismatch: got=%q want=%q", got.JobID, reg.JobID)
	}
	if got.PackagePath != reg.PackagePath {
		t.Fatalf("package_path mismatch: got=%q want=%q", got.PackagePath, reg.PackagePath)
	}
	if got.SourceRevision != "0b7c2a9" {
		t.Fatalf("source_revision not persisted")
	}
	if len(got.Items) != 3 || got.Items[1].StableID != "src-button-ts" {
		t.Fatalf("items not persisted: %+v", got.Items)
	}
}

func TestStore_WriteRejectsInvalidRegistry(t *testing.T) {
	s := NewStore(t.TempDir())

	now := time.Now().UTC()
	reg := testRegistry("job-dup", now)
	reg.Items[2].StableIndex = 1 // duplicate

	if err := s.Write(reg); err == nil {
		t.Fatalf("Write() accepted duplicate stable index")
	}
	if _, err := os.Stat(s.RegistryPath("job-dup")); !os.IsNotExist(err) {
		t.Fatalf("invalid registry was partially written")
	}

	reg = testRegistry("job-range", now)
	reg.Items[0].StableIndex = 9 // out of [0, N)
	if err := s.Write(reg); err == nil {
		t.Fatalf("Write() accepted out-of-range stable index")
	}
}

func TestStore_ListSortsOldestFirst(t *testing.T) {
	s := NewStore(t.TempDir())

	t1 := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)

	if err := s.Write(testRegistry("job-newer", t2)); err != nil {
		t.Fatalf("Write job-newer: %v", err)
	}
	if err := s.Write(testRegistry("job-older", t1)); err != nil {
		t.Fatalf("Write job-older: %v", err)
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected registry count: %d", len(got))
	}
	if got[0].JobID != "job-older" {
		t.Fatalf("expected oldest first, got[0]=%q", got[0].JobID)
	}
}

func TestStore_ListIgnoresSnapshotsAndResults(t *testing.T) {
	s := NewStore(t.TempDir())
	now := time.Now().UTC()

	if err := s.Write(testRegistry("job-1", now)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.WriteSnapshot("job-1", []byte(`{"processing_status":"in_progress"}`)); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if err := os.WriteFile(s.ResultsPath("job-1"), []byte("{}\n"), 0644); err != nil {
		t.Fatalf("write results artifact: %v", err)
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("List picked up non-registry files: %d entries", len(got))
	}
}
