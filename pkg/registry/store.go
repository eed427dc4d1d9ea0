package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Area names the lifecycle storage locations for a registry.
type Area string

const (
	AreaActive    Area = "active"
	AreaProcessed Area = "processed"
	AreaFailed    Area = "failed"
)

const (
	processedDirName = "processed"
	failedDirName    = "failed"
	submittedDirName = "submitted"

	registrySuffix = ".json"
	resultsSuffix  = ".results.jsonl"
	snapshotSuffix = ".status.json"
	envelopeSuffix = ".envelope.json"
)

// Store persists and loads Registry records from an on-disk areas root.
//
// The active area is the root itself; processed/ and failed/ are
// subdirectories. Root is expected to be under the app data dir.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: strings.TrimSpace(root)}
}

func (s *Store) RootDir() string {
	return s.root
}

func (s *Store) AreaDir(area Area) string {
	switch area {
	case AreaProcessed:
		return filepath.Join(s.root, processedDirName)
	case AreaFailed:
		return filepath.Join(s.root, failedDirName)
	default:
		return s.root
	}
}

func (s *Store) SubmittedDir() string {
	return filepath.Join(s.root, submittedDirName)
}

// RegistryPath returns the active-area path of a registry file.
func (s *Store) RegistryPath(jobID string) string {
	return filepath.Join(s.root, jobID+registrySuffix)
}

// ResultsPath returns the active-area path of the cached result artifact.
func (s *Store) ResultsPath(jobID string) string {
	return filepath.Join(s.root, jobID+resultsSuffix)
}

// SnapshotPath returns the path of the raw status debug snapshot.
func (s *Store) SnapshotPath(jobID string) string {
	return filepath.Join(s.root, jobID+snapshotSuffix)
}

// EnvelopePath returns the submitted-area path of a raw submission envelope.
func (s *Store) EnvelopePath(jobID string) string {
	return filepath.Join(s.SubmittedDir(), jobID+envelopeSuffix)
}

func (s *Store) ensureRoot() error {
	if strings.TrimSpace(s.root) == "" {
		return fmt.Errorf("registry root dir is empty")
	}
	return os.MkdirAll(s.root, 0755)
}

// Write persists a registry to the active area.
//
// The write is atomic (temp file + rename) so a crash can never leave a
// partially written registry behind.
func (s *Store) Write(reg *Registry) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	if err := s.ensureRoot(); err != nil {
		return err
	}

	b, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	b = append(b, '\n')

	return writeFileAtomic(s.RegistryPath(reg.JobID), b)
}

// Get loads a registry by job id from the active area.
func (s *Store) Get(jobID string) (*Registry, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("job_id is required")
	}
	return readRegistry(s.RegistryPath(jobID))
}

// GetFromArea loads a registry from a specific lifecycle area.
func (s *Store) GetFromArea(jobID string, area Area) (*Registry, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("job_id is required")
	}
	return readRegistry(filepath.Join(s.AreaDir(area), jobID+registrySuffix))
}

// List returns all registries in the active area, oldest first.
//
// Oldest-first keeps scan processing order stable across runs: jobs are
// handled in submission order. Registries that fail to parse are skipped;
// a scan must not be wedged by one corrupt file.
func (s *Store) List() ([]Registry, error) {
	if err := s.ensureRoot(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read registry root: %w", err)
	}

	out := make([]Registry, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, registrySuffix) ||
			strings.HasSuffix(name, resultsSuffix) ||
			strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		reg, err := readRegistry(filepath.Join(s.root, name))
		if err != nil {
			continue
		}
		out = append(out, *reg)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].JobID < out[j].JobID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

// WriteSnapshot stores the last raw provider status response for a job.
// Snapshots are diagnostics only and are never consumed by the matcher.
func (s *Store) WriteSnapshot(jobID string, raw []byte) error {
	if err := s.ensureRoot(); err != nil {
		return err
	}
	return writeFileAtomic(s.SnapshotPath(jobID), raw)
}

func readRegistry(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return nil, fmt.Errorf("registry file is empty: %s", path)
	}
	var reg Registry
	if err := json.Unmarshal([]byte(trimmed), &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// writeFileAtomic writes b to path via a temp file in the same directory
// followed by a rename.
func writeFileAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
