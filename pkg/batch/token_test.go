package batch

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	items := []JobItem{
		{StableIndex: 0, FilePath: "src/index.ts", StableID: StableIDFor("src/index.ts")},
		{StableIndex: 7, FilePath: "src/components/Button.tsx", StableID: StableIDFor("src/components/Button.tsx")},
		{StableIndex: 42, FilePath: "deep/nested/v2.util.ts", StableID: StableIDFor("deep/nested/v2.util.ts")},
		{StableIndex: 3, FilePath: "no-stable-id.ts"},
	}

	for _, item := range items {
		tok := EncodeToken(item)
		got, err := DecodeToken(tok)
		if err != nil {
			t.Fatalf("DecodeToken(%q) error: %v", tok, err)
		}
		if got != item.StableIndex {
			t.Fatalf("DecodeToken(%q) = %d, want %d", tok, got, item.StableIndex)
		}
	}
}

func TestEncodeTokenFallbackPrefix(t *testing.T) {
	tok := EncodeToken(JobItem{StableIndex: 5})
	if tok != "item-5" {
		t.Fatalf("EncodeToken with empty stable id = %q, want %q", tok, "item-5")
	}
}

func TestDecodeTokenFailsClosed(t *testing.T) {
	bad := []string{
		"",
		"noindex",
		"trailing-",
		"src-file-",
		"src-file-x7",
		"src-file-007", // leading zeros are ambiguous
		"src-file--3-", // signed suffix must not parse
		"src-file-18446744073709551616",
	}
	for _, tok := range bad {
		if _, err := DecodeToken(tok); err == nil {
			t.Fatalf("DecodeToken(%q) succeeded, want error", tok)
		}
	}
}

func TestStableIDForNormalizesSeparators(t *testing.T) {
	a := StableIDFor("src/components/Button.tsx")
	b := StableIDFor("src\\components\\Button.tsx")
	if a != b {
		t.Fatalf("stable id differs across separators: %q vs %q", a, b)
	}
	if a != "src-components-Button-tsx" {
		t.Fatalf("unexpected stable id: %q", a)
	}
}
