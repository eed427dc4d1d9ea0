package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/schema"

	schemasassets "github.com/doclift/doclift/internal/assets/schemas"
)

// SchemaID is the schema identifier for job manifests.
const SchemaID = "doclift/v1.0.0/job-manifest"

var (
	// ErrSchemaNotFound indicates the embedded schema could not be located.
	ErrSchemaNotFound = errors.New("manifest schema not found")

	// ErrValidationFailed indicates the manifest failed schema validation.
	ErrValidationFailed = errors.New("manifest validation failed")
)

// Cached validator instance, compiled once from the embedded schema.
var (
	validatorOnce sync.Once
	validator     *schema.Validator
	validatorErr  error
)

// ValidationError represents a single validation issue.
type ValidationError struct {
	// Path is the JSON pointer to the problematic field
	// (e.g., "/match/includes").
	Path string

	// Message describes the validation failure.
	Message string
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "manifest validation failed with %d errors:", len(e))
	for _, err := range e {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error type.
func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

// Validate checks the manifest against the JSON schema.
//
// Note: this validates the struct representation, which loses unknown
// fields. Load validates the raw input instead, so unknown fields are
// rejected there (additionalProperties: false).
func (m *Manifest) Validate() error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("serialize manifest for validation: %w", err)
	}
	return ValidateRaw(data)
}

// ValidateRaw checks raw JSON data against the manifest schema.
//
// The schema is embedded at compile time, so validation works correctly in
// installed binaries and library consumers without requiring schema files
// on disk.
//
// Returns nil if validation succeeds, or a ValidationErrors with details
// about all validation failures.
func ValidateRaw(jsonData []byte) error {
	v, err := getValidator()
	if err != nil {
		return err
	}

	diags, err := v.ValidateJSON(jsonData)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	var errs ValidationErrors
	for _, d := range diags {
		if d.Severity == schema.SeverityError {
			errs = append(errs, ValidationError{
				Path:    d.Pointer,
				Message: d.Message,
			})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// getValidator returns a cached validator compiled from the embedded
// schema. Thread-safe via sync.Once.
func getValidator() (*schema.Validator, error) {
	validatorOnce.Do(func() {
		if len(schemasassets.JobManifestSchema) == 0 {
			validatorErr = fmt.Errorf("%w: embedded job-manifest schema is empty", ErrSchemaNotFound)
			return
		}
		validator, validatorErr = schema.NewValidator(schemasassets.JobManifestSchema)
		if validatorErr != nil {
			validatorErr = fmt.Errorf("compile manifest schema: %w", validatorErr)
		}
	})
	return validator, validatorErr
}
