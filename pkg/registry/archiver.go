package registry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Archiver relocates a job's artifacts between lifecycle areas.
//
// Relocation is copy-then-delete, never delete-then-copy: a crash mid-move
// leaves the record in both areas (recoverable) rather than in neither
// (lost). Once a registry reaches processed/ or failed/ it is never reused
// as pending.
type Archiver struct {
	store *Store
}

func NewArchiver(store *Store) *Archiver {
	return &Archiver{store: store}
}

// Archive moves the registry, cached result artifact, and debug snapshot
// for jobID from the active area into the given terminal area.
//
// The result artifact and snapshot are optional; the registry is not.
func (a *Archiver) Archive(jobID string, area Area) error {
	if area != AreaProcessed && area != AreaFailed {
		return fmt.Errorf("cannot archive to area %q", area)
	}
	destDir := a.store.AreaDir(area)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create %s area: %w", area, err)
	}

	regPath := a.store.RegistryPath(jobID)
	if _, err := os.Stat(regPath); err != nil {
		return fmt.Errorf("registry for job %s not in active area: %w", jobID, err)
	}

	paths := []string{
		regPath,
		a.store.ResultsPath(jobID),
		a.store.SnapshotPath(jobID),
	}

	// Copy everything first. Deletion of the active copies only starts
	// after every copy has landed.
	copied := make([]string, 0, len(paths))
	for _, src := range paths {
		if _, err := os.Stat(src); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("stat %s: %w", src, err)
		}
		dst := filepath.Join(destDir, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("archive %s to %s: %w", filepath.Base(src), area, err)
		}
		copied = append(copied, src)
	}

	for _, src := range copied {
		if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove active copy %s: %w", src, err)
		}
	}
	return nil
}

// ArchiveEnvelope relocates a raw submission envelope into submitted/ once
// the remote job has been accepted, distinguishing "attempted" from
// "accepted" payloads during debugging.
func (a *Archiver) ArchiveEnvelope(jobID string, srcPath string) error {
	if err := os.MkdirAll(a.store.SubmittedDir(), 0755); err != nil {
		return fmt.Errorf("create submitted area: %w", err)
	}
	dst := a.store.EnvelopePath(jobID)
	if err := copyFile(srcPath, dst); err != nil {
		return fmt.Errorf("archive envelope: %w", err)
	}
	if err := os.Remove(srcPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove envelope staging copy: %w", err)
	}
	return nil
}

// copyFile copies src to dst atomically (temp file + rename in dst's dir).
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, filepath.Base(dst)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dst)
}
