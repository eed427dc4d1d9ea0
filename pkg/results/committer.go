package results

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/doclift/doclift/pkg/batch"
	"github.com/doclift/doclift/pkg/output"
)

// Stats tallies the per-job outcome of committing results.
type Stats struct {
	// Written is the count of files whose content was committed.
	Written int

	// Skipped counts items with no matched result plus items whose
	// target file was missing or unwritable.
	Skipped int

	// Mismatched counts integrity-guard rejections. Never written.
	Mismatched int

	// UnitDelta is the net change in transformation units (doc comment
	// blocks) across all committed files.
	UnitDelta int
}

// Add accumulates another job's stats into s.
func (s *Stats) Add(o Stats) {
	s.Written += o.Written
	s.Skipped += o.Skipped
	s.Mismatched += o.Mismatched
	s.UnitDelta += o.UnitDelta
}

// Committer writes accepted content back into the package working tree.
//
// The committer never writes content the integrity guard rejected, and
// per-item filesystem failures degrade to skips rather than failing the
// job: the dominant design goal is to never lose a job's partial progress
// and never silently corrupt a file.
type Committer struct {
	packagePath string
	writer      output.Writer
	logger      *zap.Logger
}

func NewCommitter(packagePath string, writer output.Writer, logger *zap.Logger) *Committer {
	if writer == nil {
		writer = output.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Committer{packagePath: packagePath, writer: writer, logger: logger}
}

// Commit writes every matched item that passes the integrity guard and
// tallies the rest. Items already skipped by the matcher are counted too.
func (c *Committer) Commit(ctx context.Context, jobID string, outcome *Outcome) (*Stats, error) {
	stats := &Stats{}

	for _, skipped := range outcome.Skipped {
		stats.Skipped++
		_ = c.writer.WriteSkip(ctx, &output.SkipRecord{
			JobID:       jobID,
			Path:        skipped.FilePath,
			StableIndex: skipped.StableIndex,
			Reason:      "no matching result",
		})
	}

	for _, m := range outcome.Matches {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		c.commitOne(ctx, jobID, m, stats)
	}

	c.logger.Info("Committed job results",
		zap.String("job_id", jobID),
		zap.Int("written", stats.Written),
		zap.Int("skipped", stats.Skipped),
		zap.Int("mismatched", stats.Mismatched),
		zap.Int("unit_delta", stats.UnitDelta))

	return stats, nil
}

func (c *Committer) commitOne(ctx context.Context, jobID string, m Match, stats *Stats) {
	target, err := c.targetPath(m.Item)
	if err != nil {
		stats.Skipped++
		c.skip(ctx, jobID, m.Item, err.Error())
		return
	}

	original, err := os.ReadFile(target)
	if err != nil {
		stats.Skipped++
		c.skip(ctx, jobID, m.Item, fmt.Sprintf("target unreadable: %v", err))
		return
	}

	if err := GuardContent(m.Item.FilePath, string(original), m.Content); err != nil {
		stats.Mismatched++
		c.logger.Warn("Integrity guard rejected content",
			zap.String("job_id", jobID),
			zap.String("path", m.Item.FilePath),
			zap.Error(err))
		_ = c.writer.WriteMismatch(ctx, &output.MismatchRecord{
			JobID:       jobID,
			Path:        m.Item.FilePath,
			StableIndex: m.Item.StableIndex,
			Reason:      err.Error(),
		})
		return
	}

	if err := writeFileAtomic(target, []byte(m.Content)); err != nil {
		stats.Skipped++
		c.skip(ctx, jobID, m.Item, fmt.Sprintf("write failed: %v", err))
		return
	}

	delta := countDocUnits(m.Content) - countDocUnits(string(original))
	stats.Written++
	stats.UnitDelta += delta
	_ = c.writer.WriteItem(ctx, &output.ItemRecord{
		JobID:       jobID,
		Path:        m.Item.FilePath,
		StableIndex: m.Item.StableIndex,
		Bytes:       len(m.Content),
		UnitDelta:   delta,
	})
}

func (c *Committer) skip(ctx context.Context, jobID string, item batch.JobItem, reason string) {
	c.logger.Warn("Skipping item",
		zap.String("job_id", jobID),
		zap.String("path", item.FilePath),
		zap.String("reason", reason))
	_ = c.writer.WriteSkip(ctx, &output.SkipRecord{
		JobID:       jobID,
		Path:        item.FilePath,
		StableIndex: item.StableIndex,
		Reason:      reason,
	})
}

// targetPath resolves an item's file path under the package root and
// rejects paths that escape it.
func (c *Committer) targetPath(item batch.JobItem) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(item.FilePath))
	if rel == "" || rel == "." || filepath.IsAbs(rel) || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("item path %q escapes package root", item.FilePath)
	}
	return filepath.Join(c.packagePath, rel), nil
}

// countDocUnits counts documentation comment openers. The delta between
// replacement and original approximates how many units the transformation
// added.
func countDocUnits(content string) int {
	return strings.Count(content, "/**")
}

func writeFileAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
