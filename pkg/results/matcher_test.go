package results

import (
	"testing"
	"time"

	"github.com/doclift/doclift/pkg/batch"
	"github.com/doclift/doclift/pkg/registry"
)

func threeItemRegistry() *registry.Registry {
	return &registry.Registry{
		JobID:       "job-1",
		PackagePath: "/repo/pkg",
		CreatedAt:   time.Now().UTC(),
		Items: []batch.JobItem{
			{StableIndex: 0, FilePath: "src/a.ts", StableID: "src-a-ts"},
			{StableIndex: 1, FilePath: "src/b.ts", StableID: "src-b-ts"},
			{StableIndex: 2, FilePath: "src/c.ts", StableID: "src-c-ts"},
		},
	}
}

func TestMatchResults_PartialOutOfOrder(t *testing.T) {
	reg := threeItemRegistry()

	// Provider returned results for indices 2 and 0 only, reordered.
	records := []batch.ResultRecord{
		{CorrelationToken: "src-c-ts-2", Content: "content for c"},
		{CorrelationToken: "src-a-ts-0", Content: "content for a"},
	}

	outcome := MatchResults(reg, records, nil)

	if len(outcome.Matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(outcome.Matches))
	}
	// Matches come back in registry order, not response order.
	if outcome.Matches[0].Item.FilePath != "src/a.ts" || outcome.Matches[0].Content != "content for a" {
		t.Fatalf("match 0 wrong: %+v", outcome.Matches[0])
	}
	if outcome.Matches[1].Item.FilePath != "src/c.ts" || outcome.Matches[1].Content != "content for c" {
		t.Fatalf("match 1 wrong: %+v", outcome.Matches[1])
	}
	if len(outcome.Skipped) != 1 || outcome.Skipped[0].FilePath != "src/b.ts" {
		t.Fatalf("skipped wrong: %+v", outcome.Skipped)
	}
}

func TestMatchResults_CorruptTokensNeverMisassigned(t *testing.T) {
	reg := threeItemRegistry()

	records := []batch.ResultRecord{
		{CorrelationToken: "src-a-ts-0", Content: "good"},
		{CorrelationToken: "garbage", Content: "must not land anywhere"},
		{CorrelationToken: "src-b-ts-0x1", Content: "must not land anywhere"},
	}

	outcome := MatchResults(reg, records, nil)

	if len(outcome.Matches) != 1 || outcome.Matches[0].Item.StableIndex != 0 {
		t.Fatalf("matches wrong: %+v", outcome.Matches)
	}
	for _, m := range outcome.Matches {
		if m.Content == "must not land anywhere" {
			t.Fatalf("corrupt token content was assigned to %s", m.Item.FilePath)
		}
	}
	if outcome.DroppedTokens != 2 {
		t.Fatalf("dropped = %d, want 2", outcome.DroppedTokens)
	}
	if len(outcome.Skipped) != 2 {
		t.Fatalf("skipped = %d, want 2", len(outcome.Skipped))
	}
}

func TestMatchResults_UnknownAndDuplicateIndicesDropped(t *testing.T) {
	reg := threeItemRegistry()

	records := []batch.ResultRecord{
		{CorrelationToken: "item-7", Content: "index out of range"},
		{CorrelationToken: "src-b-ts-1", Content: "first wins"},
		{CorrelationToken: "dup-1", Content: "second dropped"},
	}

	outcome := MatchResults(reg, records, nil)

	if len(outcome.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(outcome.Matches))
	}
	if outcome.Matches[0].Content != "first wins" {
		t.Fatalf("duplicate overwrote first result: %+v", outcome.Matches[0])
	}
	if outcome.DroppedTokens != 2 {
		t.Fatalf("dropped = %d, want 2", outcome.DroppedTokens)
	}
}
