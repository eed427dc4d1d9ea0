package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider operations.
var (
	// ErrNotFound indicates the requested batch does not exist.
	ErrNotFound = errors.New("batch not found")

	// ErrUnauthorized indicates authentication failed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnavailable indicates the provider service is unavailable.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrThrottled indicates the request was rate limited by the provider.
	ErrThrottled = errors.New("request throttled")

	// ErrEmptyBatch indicates a submission with no requests was attempted.
	ErrEmptyBatch = errors.New("batch has no requests")
)

// ProviderError wraps provider-specific errors with context.
type ProviderError struct {
	// Op is the operation that failed (e.g., "CreateBatch", "GetStatus").
	Op string

	// Provider is the provider name (e.g., "anthropic").
	Provider string

	// JobID is the remote job id, if applicable.
	JobID string

	// Err is the underlying error.
	Err error
}

func (e *ProviderError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.JobID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates the batch was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized returns true if the error indicates authentication failed.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsUnavailable returns true if the error indicates the service is unavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsThrottled returns true if the error indicates the request was rate limited.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}
