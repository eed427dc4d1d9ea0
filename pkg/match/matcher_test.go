package match

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestNew_RequiresIncludes(t *testing.T) {
	if _, err := New(Config{}); err != ErrNoIncludes {
		t.Fatalf("New() error = %v, want ErrNoIncludes", err)
	}
}

func TestNew_RejectsInvalidPattern(t *testing.T) {
	_, err := New(Config{Includes: []string{"src/[unclosed"}})
	if err == nil {
		t.Fatalf("New() accepted invalid pattern")
	}
}

func TestMatcher_Match(t *testing.T) {
	m, err := New(Config{
		Includes: []string{"src/**/*.ts"},
		Excludes: []string{"**/*.test.ts", "**/__mocks__/**"},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	cases := []struct {
		path string
		want bool
	}{
		{"src/index.ts", true},
		{"src/components/button.ts", true},
		{"src/components/button.test.ts", false},
		{"src/__mocks__/button.ts", false},
		{"lib/index.ts", false},
		{"src/.hidden.ts", false},
	}
	for _, tc := range cases {
		if got := m.Match(tc.path); got != tc.want {
			t.Errorf("Match(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestMatcher_MatchWindowsSeparators(t *testing.T) {
	m, err := New(Config{Includes: []string{`src\**\*.ts`}})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if !m.Match("src/deep/file.ts") {
		t.Fatalf("normalized pattern did not match")
	}
}

func TestMatcher_SelectIsDeterministic(t *testing.T) {
	root := t.TempDir()
	files := []string{
		"src/zeta.ts",
		"src/alpha.ts",
		"src/nested/beta.ts",
		"src/skip.test.ts",
		"README.md",
		".git/config",
	}
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	m, err := New(Config{
		Includes: []string{"src/**/*.ts"},
		Excludes: []string{"**/*.test.ts"},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	got, err := m.Select(root)
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	want := []string{"src/alpha.ts", "src/nested/beta.ts", "src/zeta.ts"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Select() = %v, want %v", got, want)
	}

	again, err := m.Select(root)
	if err != nil {
		t.Fatalf("second Select() error: %v", err)
	}
	if !reflect.DeepEqual(again, got) {
		t.Fatalf("Select() not deterministic: %v vs %v", again, got)
	}
}
