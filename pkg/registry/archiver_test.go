package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestArchiver_ArchiveToProcessed(t *testing.T) {
	s := NewStore(t.TempDir())
	a := NewArchiver(s)

	reg := testRegistry("job-1", time.Now().UTC())
	if err := s.Write(reg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := os.WriteFile(s.ResultsPath("job-1"), []byte(`{"custom_id":"item-0","content":"x"}`+"\n"), 0644); err != nil {
		t.Fatalf("write results: %v", err)
	}

	if err := a.Archive("job-1", AreaProcessed); err != nil {
		t.Fatalf("Archive() error: %v", err)
	}

	// The active copies are gone.
	if _, err := os.Stat(s.RegistryPath("job-1")); !os.IsNotExist(err) {
		t.Fatalf("registry still in active area")
	}
	if _, err := os.Stat(s.ResultsPath("job-1")); !os.IsNotExist(err) {
		t.Fatalf("result artifact still in active area")
	}

	// Equivalent files exist in processed/.
	got, err := s.GetFromArea("job-1", AreaProcessed)
	if err != nil {
		t.Fatalf("GetFromArea(processed): %v", err)
	}
	if got.JobID != "job-1" || len(got.Items) != 3 {
		t.Fatalf("archived registry not equivalent: %+v", got)
	}
	if _, err := os.Stat(filepath.Join(s.AreaDir(AreaProcessed), "job-1.results.jsonl")); err != nil {
		t.Fatalf("result artifact not archived: %v", err)
	}

	// Archived jobs no longer appear in the active scan.
	active, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("archived registry still listed as pending")
	}
}

func TestArchiver_ArchiveToFailedWithoutResults(t *testing.T) {
	s := NewStore(t.TempDir())
	a := NewArchiver(s)

	if err := s.Write(testRegistry("job-2", time.Now().UTC())); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.WriteSnapshot("job-2", []byte(`{"processing_status":"ended","error":"overloaded"}`)); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	if err := a.Archive("job-2", AreaFailed); err != nil {
		t.Fatalf("Archive() error: %v", err)
	}

	if _, err := s.GetFromArea("job-2", AreaFailed); err != nil {
		t.Fatalf("registry not in failed area: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.AreaDir(AreaFailed), "job-2.status.json")); err != nil {
		t.Fatalf("diagnostic snapshot not archived: %v", err)
	}
}

func TestArchiver_RejectsUnknownJobAndActiveArea(t *testing.T) {
	s := NewStore(t.TempDir())
	a := NewArchiver(s)

	if err := a.Archive("missing", AreaProcessed); err == nil {
		t.Fatalf("Archive() of unknown job succeeded")
	}

	if err := s.Write(testRegistry("job-3", time.Now().UTC())); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := a.Archive("job-3", AreaActive); err == nil {
		t.Fatalf("Archive() to active area succeeded")
	}
}

func TestArchiver_ArchiveEnvelope(t *testing.T) {
	s := NewStore(t.TempDir())
	a := NewArchiver(s)

	staging := filepath.Join(s.RootDir(), "staging.envelope.json")
	if err := os.WriteFile(staging, []byte(`{"requests":[]}`), 0644); err != nil {
		t.Fatalf("write staging envelope: %v", err)
	}

	if err := a.ArchiveEnvelope("job-4", staging); err != nil {
		t.Fatalf("ArchiveEnvelope() error: %v", err)
	}
	if _, err := os.Stat(s.EnvelopePath("job-4")); err != nil {
		t.Fatalf("envelope not in submitted area: %v", err)
	}
	if _, err := os.Stat(staging); !os.IsNotExist(err) {
		t.Fatalf("staging envelope still present")
	}
}
