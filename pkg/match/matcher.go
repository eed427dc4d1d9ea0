// Package match selects source files for submission using glob patterns.
//
// A Matcher is configured with include and exclude patterns:
//   - Include patterns: a file must match at least one
//   - Exclude patterns: a file must not match any
//
// Patterns use doublestar syntax and are evaluated against slash-separated
// paths relative to the package root.
package match

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher evaluates patterns against package-relative file paths.
//
// The Matcher is safe for concurrent use after creation.
type Matcher struct {
	includes      []string
	excludes      []string
	includeHidden bool
}

// Config configures a Matcher.
type Config struct {
	// Includes are glob patterns that files must match (at least one).
	// Required: at least one include pattern must be specified.
	Includes []string

	// Excludes are glob patterns that files must not match (any).
	// Optional: if empty, no excludes are applied.
	Excludes []string

	// IncludeHidden controls whether hidden files are matched.
	// Hidden files have path segments starting with '.'.
	// Default: false (hidden files are excluded).
	IncludeHidden bool
}

// Errors returned by Matcher operations.
var (
	// ErrNoIncludes is returned when no include patterns are provided.
	ErrNoIncludes = errors.New("at least one include pattern is required")

	// ErrInvalidPattern is returned when a pattern cannot be compiled.
	ErrInvalidPattern = errors.New("invalid glob pattern")
)

// PatternError wraps pattern-related errors with context.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// New creates a new Matcher from the given configuration.
//
// Patterns are normalized to forward slashes so Windows-style inputs
// behave identically.
func New(cfg Config) (*Matcher, error) {
	if len(cfg.Includes) == 0 {
		return nil, ErrNoIncludes
	}

	includes := make([]string, 0, len(cfg.Includes))
	for _, raw := range cfg.Includes {
		normalized := normalizePattern(raw)
		if !doublestar.ValidatePattern(normalized) {
			return nil, &PatternError{Pattern: raw, Err: ErrInvalidPattern}
		}
		includes = append(includes, normalized)
	}

	excludes := make([]string, 0, len(cfg.Excludes))
	for _, raw := range cfg.Excludes {
		normalized := normalizePattern(raw)
		if !doublestar.ValidatePattern(normalized) {
			return nil, &PatternError{Pattern: raw, Err: ErrInvalidPattern}
		}
		excludes = append(excludes, normalized)
	}

	return &Matcher{
		includes:      includes,
		excludes:      excludes,
		includeHidden: cfg.IncludeHidden,
	}, nil
}

// Match returns true if the relative path matches the include/exclude
// patterns.
//
// A path matches if:
//  1. It matches at least one include pattern
//  2. It does not match any exclude pattern
//  3. It is not hidden (unless IncludeHidden is true)
func (m *Matcher) Match(relPath string) bool {
	relPath = filepath.ToSlash(relPath)

	if !m.includeHidden && isHidden(relPath) {
		return false
	}

	matched := false
	for _, inc := range m.includes {
		if matchPattern(inc, relPath) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	for _, exc := range m.excludes {
		if matchPattern(exc, relPath) {
			return false
		}
	}

	return true
}

// Select walks root and returns the sorted package-relative paths of all
// regular files the matcher accepts.
//
// Sorting makes stable-index assignment deterministic: the same tree and
// patterns always queue items in the same order.
func (m *Matcher) Select(root string) ([]string, error) {
	var selected []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Skip hidden directories entirely unless requested.
			if path != root && !m.includeHidden && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if m.Match(rel) {
			selected = append(selected, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(selected)
	return selected, nil
}

// IncludePatterns returns the normalized include patterns.
func (m *Matcher) IncludePatterns() []string {
	return append([]string(nil), m.includes...)
}

// ExcludePatterns returns the normalized exclude patterns.
func (m *Matcher) ExcludePatterns() []string {
	return append([]string(nil), m.excludes...)
}

// isHidden reports whether any path segment starts with a dot.
func isHidden(relPath string) bool {
	for _, seg := range strings.Split(relPath, "/") {
		if strings.HasPrefix(seg, ".") && seg != "." && seg != ".." {
			return true
		}
	}
	return false
}

// normalizePattern converts backslash separators to forward slashes.
func normalizePattern(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// matchPattern matches a relative path against a doublestar pattern.
func matchPattern(pattern, relPath string) bool {
	matched, err := doublestar.Match(pattern, relPath)
	if err != nil {
		// Pattern was validated at construction time, so this shouldn't happen
		return false
	}
	return matched
}
