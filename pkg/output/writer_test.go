package output

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func TestJSONLWriter_EmitsOneRecordPerLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-1")

	ctx := context.Background()
	if err := w.WriteItem(ctx, &ItemRecord{JobID: "job-1", Path: "src/a.ts", StableIndex: 0, Bytes: 120, UnitDelta: 3}); err != nil {
		t.Fatalf("WriteItem: %v", err)
	}
	if err := w.WriteSkip(ctx, &SkipRecord{JobID: "job-1", Path: "src/b.ts", StableIndex: 1, Reason: "no result"}); err != nil {
		t.Fatalf("WriteSkip: %v", err)
	}
	if err := w.WriteSummary(ctx, &SummaryRecord{JobsProcessed: 1, FilesWritten: 1, FilesSkipped: 1}); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}

	var rec Record
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("line 0 not valid JSON: %v", err)
	}
	if rec.Type != TypeItem || rec.RunID != "run-1" {
		t.Fatalf("unexpected envelope: %+v", rec)
	}
	var item ItemRecord
	if err := json.Unmarshal(rec.Data, &item); err != nil {
		t.Fatalf("item payload: %v", err)
	}
	if item.Path != "src/a.ts" || item.UnitDelta != 3 {
		t.Fatalf("unexpected item payload: %+v", item)
	}

	if err := json.Unmarshal([]byte(lines[2]), &rec); err != nil {
		t.Fatalf("line 2 not valid JSON: %v", err)
	}
	if rec.Type != TypeSummary {
		t.Fatalf("line 2 type = %q", rec.Type)
	}
}

func TestJSONLWriter_ClosedWriterRejectsWrites(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-1")
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.WriteProbe(context.Background(), &ProbeRecord{JobID: "j", Status: "pending"}); err != ErrWriterClosed {
		t.Fatalf("WriteProbe after close = %v, want ErrWriterClosed", err)
	}
}

func TestJSONLWriter_ConcurrentWritesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-1")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = w.WriteSkip(ctx, &SkipRecord{JobID: "job", StableIndex: uint(n), Reason: "concurrent"})
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 20 {
		t.Fatalf("got %d lines, want 20", len(lines))
	}
	for i, line := range lines {
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("line %d corrupt: %v", i, err)
		}
	}
}
