package output

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer outputs JSONL records for coordinator runs.
//
// Implementations must be safe for concurrent use from multiple
// goroutines. Each Write* method emits a complete record as a single line
// of JSON followed by a newline.
type Writer interface {
	// WriteItem emits a committed-item record.
	WriteItem(ctx context.Context, item *ItemRecord) error

	// WriteSkip emits a skip record.
	WriteSkip(ctx context.Context, skip *SkipRecord) error

	// WriteMismatch emits an integrity-guard rejection record.
	WriteMismatch(ctx context.Context, mismatch *MismatchRecord) error

	// WriteProbe emits a status probe record.
	WriteProbe(ctx context.Context, probe *ProbeRecord) error

	// WriteError emits an error record.
	WriteError(ctx context.Context, err *ErrorRecord) error

	// WriteSummary emits a final summary record.
	WriteSummary(ctx context.Context, sum *SummaryRecord) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// JSONLWriter is safe for concurrent use. Writes are serialized using a
// mutex to ensure atomic line writes (no interleaved output).
type JSONLWriter struct {
	w     io.Writer
	runID string
	mu    sync.Mutex

	// closed indicates the writer has been closed.
	closed bool
}

// NewJSONLWriter creates a new JSONL writer.
//
// Parameters:
//   - w: The underlying writer (stdout, file, etc.)
//   - runID: Correlation ID for this coordinator run
func NewJSONLWriter(w io.Writer, runID string) *JSONLWriter {
	return &JSONLWriter{
		w:     w,
		runID: runID,
	}
}

// WriteItem emits a committed-item record.
func (jw *JSONLWriter) WriteItem(ctx context.Context, item *ItemRecord) error {
	return jw.writeRecord(ctx, TypeItem, item)
}

// WriteSkip emits a skip record.
func (jw *JSONLWriter) WriteSkip(ctx context.Context, skip *SkipRecord) error {
	return jw.writeRecord(ctx, TypeSkip, skip)
}

// WriteMismatch emits an integrity-guard rejection record.
func (jw *JSONLWriter) WriteMismatch(ctx context.Context, mismatch *MismatchRecord) error {
	return jw.writeRecord(ctx, TypeMismatch, mismatch)
}

// WriteProbe emits a status probe record.
func (jw *JSONLWriter) WriteProbe(ctx context.Context, probe *ProbeRecord) error {
	return jw.writeRecord(ctx, TypeProbe, probe)
}

// WriteError emits an error record.
func (jw *JSONLWriter) WriteError(ctx context.Context, errRec *ErrorRecord) error {
	return jw.writeRecord(ctx, TypeError, errRec)
}

// WriteSummary emits a final summary record.
func (jw *JSONLWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, sum)
}

// Close marks the writer as closed.
//
// If the underlying writer implements io.Closer, it is NOT closed.
// The caller is responsible for closing the underlying writer.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

// writeRecord marshals data and writes a complete record line.
//
// This method holds the mutex for the entire operation to ensure atomic
// line writes. The record is written as a single line of JSON followed by
// a newline character.
func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	// Check context cancellation before acquiring lock
	if err := ctx.Err(); err != nil {
		return err
	}

	// Marshal the data payload first (outside the lock for better concurrency)
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}

	// Check context again after acquiring lock
	if err := ctx.Err(); err != nil {
		return err
	}

	record := Record{
		Type:  recordType,
		TS:    time.Now().UTC(),
		RunID: jw.runID,
		Data:  dataBytes,
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	// Write the record followed by newline.
	// We must handle short writes: io.Writer is allowed to return n < len(p)
	// with nil error, which would silently truncate JSONL lines and corrupt output.
	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}

	return nil
}

// writeAll writes all bytes to w, handling short writes.
//
// io.Writer.Write may return n < len(p) with a nil error (short write).
// This function loops until all bytes are written or an error occurs,
// ensuring complete JSONL lines are emitted.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			// No progress made - avoid infinite loop
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// Discard is a Writer that drops all records. Useful when a caller needs
// the pipeline but not the run report.
type Discard struct{}

func (Discard) WriteItem(context.Context, *ItemRecord) error         { return nil }
func (Discard) WriteSkip(context.Context, *SkipRecord) error         { return nil }
func (Discard) WriteMismatch(context.Context, *MismatchRecord) error { return nil }
func (Discard) WriteProbe(context.Context, *ProbeRecord) error       { return nil }
func (Discard) WriteError(context.Context, *ErrorRecord) error       { return nil }
func (Discard) WriteSummary(context.Context, *SummaryRecord) error   { return nil }
func (Discard) Close() error                                         { return nil }

// Compile-time checks that implementations satisfy Writer.
var (
	_ Writer = (*JSONLWriter)(nil)
	_ Writer = Discard{}
)
