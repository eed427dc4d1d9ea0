// Package file implements a replay provider over a local result artifact.
//
// It backs the "process one specific result artifact directly" operation:
// the artifact stands in for a completed remote job, so the rest of the
// pipeline (matching, integrity checks, committing) runs unchanged without
// touching the network.
package file

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/doclift/doclift/pkg/batch"
	"github.com/doclift/doclift/pkg/provider"
	"github.com/doclift/doclift/pkg/provider/anthropic"
)

const providerName = "file"

// Result artifacts carry whole generated files per line.
const maxLineBytes = 16 << 20

// Provider replays results from a local JSONL artifact.
//
// Lines may be normalized records ({"custom_id","content"}) as written by
// the retriever cache, or raw provider result lines; both are accepted.
type Provider struct {
	path   string
	logger *zap.Logger
}

var _ provider.BatchProvider = (*Provider)(nil)

// New creates a replay provider for the given artifact path.
func New(path string, logger *zap.Logger) (*Provider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &provider.ProviderError{Op: "New", Provider: providerName, Err: fmt.Errorf("artifact path is required")}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{path: path, logger: logger}, nil
}

func (p *Provider) Name() string { return providerName }

// CreateBatch is not supported; artifacts describe already-completed jobs.
func (p *Provider) CreateBatch(ctx context.Context, reqs []provider.Request) (string, error) {
	return "", &provider.ProviderError{Op: "CreateBatch", Provider: providerName, Err: fmt.Errorf("replay provider cannot create batches")}
}

// GetStatus reports completed when the artifact exists and is non-empty.
func (p *Provider) GetStatus(ctx context.Context, jobID string) (*provider.StatusResult, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &provider.ProviderError{Op: "GetStatus", Provider: providerName, JobID: jobID, Err: provider.ErrNotFound}
		}
		return nil, &provider.ProviderError{Op: "GetStatus", Provider: providerName, JobID: jobID, Err: err}
	}
	st := batch.StatusCompleted
	if info.Size() == 0 {
		st = batch.StatusFailed
	}
	return &provider.StatusResult{
		Status:   st,
		Terminal: true,
		Raw:      []byte(fmt.Sprintf(`{"artifact":%q,"size":%d}`, p.path, info.Size())),
	}, nil
}

// FetchResults parses the artifact into normalized result records.
func (p *Provider) FetchResults(ctx context.Context, jobID string) ([]batch.ResultRecord, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, &provider.ProviderError{Op: "FetchResults", Provider: providerName, JobID: jobID, Err: err}
	}
	defer func() { _ = f.Close() }()

	var records []batch.ResultRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		rec, err := parseLine(line)
		if err != nil {
			p.logger.Warn("Skipping unparseable artifact line",
				zap.String("artifact", p.path),
				zap.Int("line", lineNo),
				zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, &provider.ProviderError{Op: "FetchResults", Provider: providerName, JobID: jobID, Err: fmt.Errorf("read artifact: %w", err)}
	}
	return records, nil
}

// CancelBatch is a no-op for replayed artifacts.
func (p *Provider) CancelBatch(ctx context.Context, jobID string) error {
	return nil
}

func parseLine(line []byte) (batch.ResultRecord, error) {
	// Normalized cache shape first: {"custom_id","content"} with string content.
	var rec batch.ResultRecord
	if err := json.Unmarshal(line, &rec); err == nil && rec.CorrelationToken != "" && rec.Content != "" {
		return rec, nil
	}
	// Fall back to raw provider result shapes.
	return anthropic.NormalizeLine(line)
}
