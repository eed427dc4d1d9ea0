// Package registry persists job registries and manages their lifecycle
// areas on disk.
//
// Directory layout:
//
//	<root>/<job_id>.json           active registry
//	<root>/<job_id>.results.jsonl  cached result artifact
//	<root>/<job_id>.status.json    last raw status response (debug only)
//	<root>/submitted/              raw submission envelopes after acceptance
//	<root>/processed/              relocated registries for committed jobs
//	<root>/failed/                 relocated registries for failed jobs
//
// A registry is written once at submission and is read-only afterward
// except for archival relocation. It is never deleted, only moved.
package registry

import (
	"fmt"
	"time"

	"github.com/doclift/doclift/pkg/batch"
)

// Registry is the durable record for one submitted batch job.
//
// The schema is designed for backward-compatible extension (additive
// fields). PackagePath is recorded explicitly at submission time; nothing
// downstream guesses it.
type Registry struct {
	JobID          string          `json:"job_id"`
	PackagePath    string          `json:"package_path"`
	Provider       string          `json:"provider,omitempty"`
	Model          string          `json:"model,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	SourceRevision string          `json:"source_revision,omitempty"`
	Items          []batch.JobItem `json:"items"`
}

// Validate checks the registry invariants before it is written or used.
//
// Every item's stable index must be unique and lie in [0, len(items)).
func (r *Registry) Validate() error {
	if r == nil {
		return fmt.Errorf("registry is nil")
	}
	if r.JobID == "" {
		return fmt.Errorf("job_id is required")
	}
	if r.PackagePath == "" {
		return fmt.Errorf("package_path is required")
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("registry has no items")
	}
	seen := make(map[uint]string, len(r.Items))
	for _, item := range r.Items {
		if item.StableIndex >= uint(len(r.Items)) {
			return fmt.Errorf("stable index %d out of range for %d items", item.StableIndex, len(r.Items))
		}
		if prev, ok := seen[item.StableIndex]; ok {
			return fmt.Errorf("duplicate stable index %d (%s, %s)", item.StableIndex, prev, item.FilePath)
		}
		seen[item.StableIndex] = item.FilePath
	}
	return nil
}

// ItemByIndex returns the item with the given stable index, or nil.
func (r *Registry) ItemByIndex(idx uint) *batch.JobItem {
	for i := range r.Items {
		if r.Items[i].StableIndex == idx {
			return &r.Items[i]
		}
	}
	return nil
}
