// Package provider defines abstractions for asynchronous batch
// text-generation services.
//
// Providers implement a minimal surface area: create a batch, query its
// status, fetch its results, cancel it. Authentication uses each service's
// native credential convention (API key env var, SDK default chain);
// providers should not implement custom auth logic.
package provider

import (
	"context"

	"github.com/doclift/doclift/pkg/batch"
)

// Request is one item in a batch submission envelope.
//
// CustomID is the opaque correlation token; it is returned verbatim with
// the item's result and must decode back to the item's stable index.
type Request struct {
	CustomID  string
	Prompt    string
	Model     string
	MaxTokens int
}

// StatusResult is a classified remote job state.
//
// Raw carries the provider's unparsed response body for the debug
// snapshot; it is diagnostics only and never consumed by the matcher.
type StatusResult struct {
	Status      batch.JobStatus
	Terminal    bool
	ErrorDetail string
	Raw         []byte
}

// BatchProvider abstracts the external bulk-job service.
//
// Implementations should:
//   - Treat GetStatus as a pure idempotent query, safe to call repeatedly
//     and from a different process than the one that created the batch
//   - Tolerate individual malformed result lines in FetchResults (skip,
//     do not abort the retrieval)
//   - Be safe for concurrent use
type BatchProvider interface {
	// Name identifies the provider (e.g., "anthropic").
	Name() string

	// CreateBatch uploads the submission envelope and creates the remote
	// job, returning the provider-assigned job id.
	CreateBatch(ctx context.Context, reqs []Request) (string, error)

	// GetStatus queries remote job state. It has no side effects.
	GetStatus(ctx context.Context, jobID string) (*StatusResult, error)

	// FetchResults retrieves and normalizes the output of a completed job.
	// Ordering of the returned records is not guaranteed.
	FetchResults(ctx context.Context, jobID string) ([]batch.ResultRecord, error)

	// CancelBatch cancels the remote job. This is a post-commit cleanup
	// step to free provider-side quota, not a correctness mechanism.
	CancelBatch(ctx context.Context, jobID string) error
}
