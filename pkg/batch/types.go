// Package batch defines the value types shared across the batch job
// lifecycle: job items, normalized result records, and job status.
//
// These types are persisted in registry files and result artifacts and are
// part of the stable on-disk contract.
package batch

// JobItem describes one file's transformation request within a job.
//
// StableIndex is the canonical correlation key: unique within a job,
// assigned at submission time, immutable thereafter. StableID is a
// secondary, human-diagnosable key derived from the file path relative to
// the package root.
type JobItem struct {
	StableIndex uint   `json:"stable_index"`
	FilePath    string `json:"file_path"`
	EntryPoint  bool   `json:"entry_point,omitempty"`
	StableID    string `json:"stable_id,omitempty"`
}

// ResultRecord is one normalized provider result.
//
// CorrelationToken is the opaque token embedded at submission time; it must
// decode back to a StableIndex via DecodeToken.
type ResultRecord struct {
	CorrelationToken string `json:"custom_id"`
	Content          string `json:"content"`
}

// JobStatus is the remote batch state as seen by the coordinator.
//
// NOTE: these values are persisted in debug snapshots and are part of the
// stable on-disk contract.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
	StatusUnknown   JobStatus = "unknown"
)

// Terminal reports whether the status is final for the remote job.
// Only StatusCompleted proceeds to result retrieval.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
