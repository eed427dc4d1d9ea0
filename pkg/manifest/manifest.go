// Package manifest provides loading and validation of doclift submission
// manifests.
//
// A submission manifest is a YAML or JSON file that configures one batch
// submission: the package to transform, file selection patterns, and
// generation parameters.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	package:
//	  path: ./packages/widgets
//	  entry_points:
//	    - src/index.ts
//	match:
//	  includes:
//	    - "src/**/*.ts"
//	  excludes:
//	    - "**/*.test.ts"
//	generate:
//	  mode: docs
//	  model: claude-sonnet-4-5
//	  concurrency: 5
package manifest

// Generation modes.
const (
	ModeDocs  = "docs"
	ModeTests = "tests"
)

// Defaults applied to optional fields.
const (
	DefaultMode        = ModeDocs
	DefaultConcurrency = 5
	DefaultMaxTokens   = 8192
)

// Manifest represents a validated submission manifest.
//
// Required fields are Version, Package, and Match. Generate is optional
// with sensible defaults.
type Manifest struct {
	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Package identifies the package being transformed.
	Package PackageConfig `json:"package" yaml:"package"`

	// Match configures file selection by glob patterns.
	Match MatchConfig `json:"match" yaml:"match"`

	// Generate configures transformation behavior (optional).
	Generate GenerateConfig `json:"generate,omitempty" yaml:"generate,omitempty"`
}

// PackageConfig identifies the package a submission covers.
//
// Path is required and recorded immutably in the job registry; nothing
// downstream guesses the package location.
type PackageConfig struct {
	// Path is the package root directory. Required.
	Path string `json:"path" yaml:"path"`

	// EntryPoints are package-relative paths flagged as entry points.
	// Optional.
	EntryPoints []string `json:"entry_points,omitempty" yaml:"entry_points,omitempty"`
}

// MatchConfig configures file selection by glob patterns.
type MatchConfig struct {
	// Includes is a list of glob patterns for files to queue.
	// At least one pattern is required.
	Includes []string `json:"includes" yaml:"includes"`

	// Excludes is a list of glob patterns for files to skip. Optional.
	Excludes []string `json:"excludes,omitempty" yaml:"excludes,omitempty"`

	// IncludeHidden includes hidden files (starting with .). Default: false.
	IncludeHidden bool `json:"include_hidden,omitempty" yaml:"include_hidden,omitempty"`
}

// GenerateConfig configures the transformation request per item.
type GenerateConfig struct {
	// Mode selects the transformation: "docs" or "tests". Default: docs.
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`

	// Model overrides the provider's default model. Optional.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// MaxTokens bounds each item's generated output. Optional.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`

	// TemplatePath points to a prompt template file. Optional; a built-in
	// template per mode is used when unset.
	TemplatePath string `json:"template_path,omitempty" yaml:"template_path,omitempty"`

	// Concurrency bounds the content-generation fan-out. Optional; when
	// unset the process configuration supplies the value.
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`

	// RateLimit caps generation throughput in items/second. Optional;
	// zero means unlimited.
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// applyDefaults fills optional fields after validation. Concurrency stays
// at zero so process configuration can supply it; consumers fall back to
// DefaultConcurrency when nothing sets a value.
func (m *Manifest) applyDefaults() {
	if m.Generate.Mode == "" {
		m.Generate.Mode = DefaultMode
	}
	if m.Generate.MaxTokens == 0 {
		m.Generate.MaxTokens = DefaultMaxTokens
	}
}
