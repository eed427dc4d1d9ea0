// Package output provides JSONL run reports for coordinator runs.
//
// Output is structured as typed record envelopes containing committed
// items, skips, mismatches, probes, and summaries. Each line is a
// self-contained JSON object that can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: doclift.<type>.v<version>
const (
	// TypeItem identifies committed-item records.
	TypeItem = "doclift.item.v1"

	// TypeSkip identifies skipped-item records.
	TypeSkip = "doclift.skip.v1"

	// TypeMismatch identifies integrity-guard rejection records.
	TypeMismatch = "doclift.mismatch.v1"

	// TypeProbe identifies job status probe records.
	TypeProbe = "doclift.probe.v1"

	// TypeError identifies error records.
	TypeError = "doclift.error.v1"

	// TypeSummary identifies final run summary records.
	TypeSummary = "doclift.summary.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line of JSONL output contains a Record with a type-specific payload
// in the Data field. The type field determines how to interpret Data.
type Record struct {
	// Type identifies the record type (e.g., "doclift.item.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// RunID is the correlation ID for this coordinator run.
	RunID string `json:"run_id"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// ItemRecord is the data payload for a committed item.
type ItemRecord struct {
	// JobID is the batch job the item belongs to.
	JobID string `json:"job_id"`

	// Path is the committed file path relative to the package root.
	Path string `json:"path"`

	// StableIndex is the item's correlation index within its job.
	StableIndex uint `json:"stable_index"`

	// Bytes is the size of the committed content.
	Bytes int `json:"bytes"`

	// UnitDelta is the change in transformation units (doc blocks)
	// between the original and committed content.
	UnitDelta int `json:"unit_delta"`
}

// SkipRecord is the data payload for a skipped item.
//
// Skips are per-item and non-fatal: missing results, missing target files,
// and write failures are tallied here while the job continues.
type SkipRecord struct {
	JobID       string `json:"job_id"`
	Path        string `json:"path"`
	StableIndex uint   `json:"stable_index"`
	Reason      string `json:"reason"`
}

// MismatchRecord is the data payload for an integrity-guard rejection.
type MismatchRecord struct {
	JobID       string `json:"job_id"`
	Path        string `json:"path"`
	StableIndex uint   `json:"stable_index"`
	Reason      string `json:"reason"`
}

// ProbeRecord is the data payload for a job status probe.
type ProbeRecord struct {
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
	Terminal    bool   `json:"terminal"`
	ErrorDetail string `json:"error_detail,omitempty"`
}

// ErrorRecord is the data payload for errors.
//
// Errors are emitted as records rather than failing the entire run,
// allowing partial results when some jobs fail.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// JobID is the job related to this error, if applicable.
	JobID string `json:"job_id,omitempty"`
}

// Error codes for ErrorRecord.
const (
	// ErrCodeProbeFailed indicates a transient status probe failure.
	ErrCodeProbeFailed = "PROBE_FAILED"

	// ErrCodeRemoteFailed indicates the provider reported job failure.
	ErrCodeRemoteFailed = "REMOTE_FAILED"

	// ErrCodeEmptyResults indicates retrieval produced no usable results.
	ErrCodeEmptyResults = "EMPTY_RESULTS"

	// ErrCodeRevisionDrift indicates the working tree moved since submission.
	ErrCodeRevisionDrift = "REVISION_DRIFT"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal = "INTERNAL"
)

// SummaryRecord is the data payload for final run summaries.
type SummaryRecord struct {
	// JobsProcessed is the number of jobs committed and archived.
	JobsProcessed int `json:"jobs_processed"`

	// JobsPending is the number of jobs still waiting on the provider.
	JobsPending int `json:"jobs_pending"`

	// JobsFailed is the number of jobs archived to the failed area.
	JobsFailed int `json:"jobs_failed"`

	// FilesWritten is the count of committed files across all jobs.
	FilesWritten int `json:"files_written"`

	// FilesSkipped is the count of skipped items across all jobs.
	FilesSkipped int `json:"files_skipped"`

	// FilesMismatched is the count of integrity-guard rejections.
	FilesMismatched int `json:"files_mismatched"`

	// UnitDelta is the net transformation-unit change across all commits.
	UnitDelta int `json:"unit_delta"`

	// Duration is the total run duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
