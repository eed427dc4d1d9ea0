package results

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/doclift/doclift/pkg/batch"
)

func writeSourceFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCommitter_WritesAcceptedContent(t *testing.T) {
	root := t.TempDir()
	writeSourceFile(t, root, "src/a.ts", "import x from 'x'\nexport const a = 1\n")

	c := NewCommitter(root, nil, nil)
	outcome := &Outcome{
		Matches: []Match{{
			Item:    batch.JobItem{StableIndex: 0, FilePath: "src/a.ts"},
			Content: "import x from 'x'\n\n/** The a constant. */\nexport const a = 1\n",
		}},
	}

	stats, err := c.Commit(context.Background(), "job-1", outcome)
	if err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	if stats.Written != 1 || stats.Skipped != 0 || stats.Mismatched != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.UnitDelta != 1 {
		t.Fatalf("unit delta = %d, want 1", stats.UnitDelta)
	}

	got, err := os.ReadFile(filepath.Join(root, "src/a.ts"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != outcome.Matches[0].Content {
		t.Fatalf("file content = %q", got)
	}
}

func TestCommitter_NeverWritesGuardRejectedContent(t *testing.T) {
	root := t.TempDir()
	original := "import x from 'x'\nexport const a = 1\n"
	writeSourceFile(t, root, "src/a.ts", original)

	c := NewCommitter(root, nil, nil)
	outcome := &Outcome{
		Matches: []Match{{
			Item:    batch.JobItem{StableIndex: 0, FilePath: "src/a.ts"},
			Content: "describe('a', () => { it('works', () => { expect(1).toBe(1) }) })\n",
		}},
	}

	stats, err := c.Commit(context.Background(), "job-1", outcome)
	if err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	if stats.Mismatched != 1 || stats.Written != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	got, _ := os.ReadFile(filepath.Join(root, "src/a.ts"))
	if string(got) != original {
		t.Fatalf("rejected content was written: %q", got)
	}
}

func TestCommitter_MissingTargetTalliedAsSkip(t *testing.T) {
	root := t.TempDir()

	c := NewCommitter(root, nil, nil)
	outcome := &Outcome{
		Matches: []Match{{
			Item:    batch.JobItem{StableIndex: 0, FilePath: "src/gone.ts"},
			Content: "import x from 'x'\nexport {}\n",
		}},
		Skipped: []batch.JobItem{{StableIndex: 1, FilePath: "src/b.ts"}},
	}

	stats, err := c.Commit(context.Background(), "job-1", outcome)
	if err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	// One skip from the matcher, one from the missing target.
	if stats.Skipped != 2 || stats.Written != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestCommitter_RejectsEscapingPaths(t *testing.T) {
	root := t.TempDir()
	outside := writeSourceFile(t, filepath.Dir(root), "outside.ts", "import x from 'x'\nexport {}\n")

	c := NewCommitter(root, nil, nil)
	outcome := &Outcome{
		Matches: []Match{{
			Item:    batch.JobItem{StableIndex: 0, FilePath: "../outside.ts"},
			Content: "import y from 'y'\nexport {}\n",
		}},
	}

	stats, err := c.Commit(context.Background(), "job-1", outcome)
	if err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	if stats.Skipped != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	got, _ := os.ReadFile(outside)
	if string(got) != "import x from 'x'\nexport {}\n" {
		t.Fatalf("file outside package root was written")
	}
}
