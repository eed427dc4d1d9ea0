// Package results turns a completed remote job into committed files:
// retrieval with local caching, index-based matching, the integrity guard,
// and the file committer.
package results

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/doclift/doclift/pkg/batch"
	"github.com/doclift/doclift/pkg/provider"
	"github.com/doclift/doclift/pkg/registry"
)

// ErrEmptyResults indicates the provider reported completion but delivered
// no usable result records, even after one retry. Callers route the job to
// the failed area.
var ErrEmptyResults = errors.New("provider returned no usable results")

const maxCacheLineBytes = 16 << 20

// Retriever fetches a completed job's results and caches them locally so a
// second coordinator run does not re-fetch.
type Retriever struct {
	store  *registry.Store
	prov   provider.BatchProvider
	logger *zap.Logger
}

func NewRetriever(store *registry.Store, prov provider.BatchProvider, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{store: store, prov: prov, logger: logger}
}

// Retrieve returns the normalized result records for jobID.
//
// A valid cached artifact is used as-is (idempotent re-entry). A cached
// artifact that is empty or corrupt is discarded and retrieval falls
// through to the provider. A provider fetch that yields no records is
// retried exactly once; if still empty, ErrEmptyResults is returned.
func (r *Retriever) Retrieve(ctx context.Context, jobID string) ([]batch.ResultRecord, error) {
	cachePath := r.store.ResultsPath(jobID)

	if records, ok := r.loadCache(jobID, cachePath); ok {
		return records, nil
	}

	records, err := r.prov.FetchResults(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("fetch results for %s: %w", jobID, err)
	}
	if len(records) == 0 {
		r.logger.Warn("Provider returned no results, retrying once",
			zap.String("job_id", jobID))
		records, err = r.prov.FetchResults(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("retry fetch results for %s: %w", jobID, err)
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("job %s: %w", jobID, ErrEmptyResults)
		}
	}

	if err := r.writeCache(cachePath, records); err != nil {
		// Cache failure is not fatal; the next run will re-fetch.
		r.logger.Warn("Failed to cache result artifact",
			zap.String("job_id", jobID),
			zap.Error(err))
	}

	return records, nil
}

// loadCache reads a cached artifact. A missing file returns (nil, false);
// an empty or corrupt file is deleted so the provider fetch can proceed.
func (r *Retriever) loadCache(jobID, path string) ([]batch.ResultRecord, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer func() { _ = f.Close() }()

	var records []batch.ResultRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxCacheLineBytes)
	corrupt := false
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec batch.ResultRecord
		if err := json.Unmarshal(line, &rec); err != nil || rec.CorrelationToken == "" {
			corrupt = true
			break
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		corrupt = true
	}

	if corrupt || len(records) == 0 {
		r.logger.Warn("Discarding unusable cached result artifact",
			zap.String("job_id", jobID),
			zap.String("path", path),
			zap.Bool("corrupt", corrupt))
		_ = f.Close()
		_ = os.Remove(path)
		return nil, false
	}

	r.logger.Debug("Using cached result artifact",
		zap.String("job_id", jobID),
		zap.Int("records", len(records)))
	return records, true
}

// writeCache persists normalized records one JSON object per line, written
// atomically so a crash cannot leave a truncated artifact that a later run
// would mistake for the full result set.
func (r *Retriever) writeCache(path string, records []batch.ResultRecord) error {
	var buf bytes.Buffer
	for _, rec := range records {
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}
	return os.Rename(tmpName, path)
}
