package results

import (
	"errors"
	"strings"
	"testing"
)

const testishContent = `describe('widget', () => {
  it('renders', () => {
    expect(render()).toBeTruthy()
  })
})
`

const sourceContent = `import { render } from './render'

/** Renders the widget. */
export function widget() {
  return render()
}
`

func TestGuardContent_RejectsTestishOriginal(t *testing.T) {
	err := GuardContent("src/widget.ts", testishContent, sourceContent)
	if err == nil {
		t.Fatalf("guard accepted test-assertion original")
	}
	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error is not MismatchError: %v", err)
	}
	if mismatch.Side != "original" {
		t.Fatalf("side = %q, want original", mismatch.Side)
	}
}

func TestGuardContent_RejectsTestishReplacement(t *testing.T) {
	err := GuardContent("src/widget.ts", sourceContent, testishContent)
	if err == nil {
		t.Fatalf("guard accepted test-assertion replacement")
	}
	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error is not MismatchError: %v", err)
	}
	if mismatch.Side != "replacement" {
		t.Fatalf("side = %q, want replacement", mismatch.Side)
	}
}

func TestGuardContent_AcceptsSourcePair(t *testing.T) {
	if err := GuardContent("src/widget.ts", sourceContent, sourceContent+"\n// updated\n"); err != nil {
		t.Fatalf("guard rejected ordinary source: %v", err)
	}
}

func TestGuardContent_RejectsEmptySides(t *testing.T) {
	if err := GuardContent("src/widget.ts", "", sourceContent); err == nil {
		t.Fatalf("guard accepted empty original")
	}
	if err := GuardContent("src/widget.ts", sourceContent, "   \n"); err == nil {
		t.Fatalf("guard accepted empty replacement")
	}
}

func TestClassifyTestArtifact_Boundaries(t *testing.T) {
	// Test syntax plus module syntax is a legitimate test module, not an
	// unrelated artifact.
	withImports := "import { describe, it } from 'vitest'\n" + testishContent
	if reason := classifyTestArtifact(withImports); reason != "" {
		t.Fatalf("test file with imports flagged: %s", reason)
	}

	// Long content is never flagged even with test calls.
	long := testishContent + strings.Repeat("// padding line\n", 400)
	if reason := classifyTestArtifact(long); reason != "" {
		t.Fatalf("long content flagged: %s", reason)
	}

	if reason := classifyTestArtifact(testishContent); reason == "" {
		t.Fatalf("short importless test content not flagged")
	}
}
