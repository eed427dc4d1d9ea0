package results

import (
	"fmt"
	"regexp"
	"strings"
)

// The integrity guard is the last line of defense against a silent
// wrong-file overwrite: upstream correlation can occasionally go wrong
// (duplicate basenames, moved files, stale indices), and overwriting a
// source file with an unrelated artifact is the single most damaging
// failure in this system. The guard trades a small false-reject rate for
// eliminating silent corruption.

// MismatchError indicates content was rejected by the integrity guard.
type MismatchError struct {
	Path   string
	Side   string // "original" or "replacement"
	Reason string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("integrity mismatch for %s: %s content %s", e.Path, e.Side, e.Reason)
}

// Content below this size with test-call syntax and no module syntax is
// treated as a test artifact rather than documentable source.
const testArtifactMaxBytes = 4096

var (
	testCallPattern   = regexp.MustCompile(`(?m)\b(describe|it|test|expect)\s*\(`)
	moduleLinePattern = regexp.MustCompile(`(?m)^\s*(import\s|export\s|module\.exports|const\s+\w+\s*=\s*require\s*\()`)
)

// GuardContent verifies that neither the original file content nor the
// candidate replacement looks like an unrelated artifact class. If either
// side trips the heuristic, the pair is rejected and must not be written.
func GuardContent(path, original, replacement string) error {
	if reason := classifyTestArtifact(original); reason != "" {
		return &MismatchError{Path: path, Side: "original", Reason: reason}
	}
	if reason := classifyTestArtifact(replacement); reason != "" {
		return &MismatchError{Path: path, Side: "replacement", Reason: reason}
	}
	return nil
}

// classifyTestArtifact returns a non-empty reason when content exhibits
// the signature of a test-assertion file: test-framework call syntax,
// absence of import/module syntax, and short overall length.
func classifyTestArtifact(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "is empty"
	}
	if len(trimmed) >= testArtifactMaxBytes {
		return ""
	}
	if !testCallPattern.MatchString(trimmed) {
		return ""
	}
	if moduleLinePattern.MatchString(trimmed) {
		return ""
	}
	return "looks like a test-assertion artifact"
}
