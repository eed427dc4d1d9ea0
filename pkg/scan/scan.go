// Package scan drives the job lifecycle: probe every active registry once,
// retrieve and commit the jobs that completed, and archive them.
//
// The loop is strictly sequential. Committing files from two jobs
// concurrently would race on shared working-tree state, so one job finishes
// before the next begins. A scan is non-blocking per job: nothing waits on
// a remote job that is still running, and still-pending jobs are not an
// error.
package scan

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/doclift/doclift/pkg/batch"
	"github.com/doclift/doclift/pkg/output"
	"github.com/doclift/doclift/pkg/provider"
	"github.com/doclift/doclift/pkg/provider/file"
	"github.com/doclift/doclift/pkg/registry"
	"github.com/doclift/doclift/pkg/results"
	"github.com/doclift/doclift/pkg/revision"
)

// Summary reports one scan invocation's per-job dispositions plus the
// aggregate file statistics of every committed job.
type Summary struct {
	Processed int
	Pending   int
	Failed    int
	Stats     results.Stats
}

// Replicator removes a job's mirrored artifacts once the job leaves the
// active area. Optional; nil disables cross-host cleanup.
type Replicator interface {
	Remove(ctx context.Context, store *registry.Store, jobID string) error
}

// Config wires a Runner.
type Config struct {
	Store    *registry.Store
	Provider provider.BatchProvider
	Writer   output.Writer
	Checker  *revision.Checker

	// StrictRevision pins the working tree to each job's recorded
	// revision before committing and restores it afterward. Off by
	// default: drift degrades to a warning.
	StrictRevision bool

	// CancelCompleted cancels the remote job after a successful commit
	// to free provider-side quota. A cleanup step, not a correctness
	// mechanism.
	CancelCompleted bool

	Replicator Replicator
	Logger     *zap.Logger
}

// Runner processes active-area jobs one at a time.
type Runner struct {
	store     *registry.Store
	archiver  *registry.Archiver
	prov      provider.BatchProvider
	retriever *results.Retriever
	writer    output.Writer
	checker   *revision.Checker
	strict    bool
	cancel    bool
	repl      Replicator
	logger    *zap.Logger
}

func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	writer := cfg.Writer
	if writer == nil {
		writer = output.Discard{}
	}
	checker := cfg.Checker
	if checker == nil {
		checker = revision.NewChecker(nil, logger)
	}
	return &Runner{
		store:     cfg.Store,
		archiver:  registry.NewArchiver(cfg.Store),
		prov:      cfg.Provider,
		retriever: results.NewRetriever(cfg.Store, cfg.Provider, logger),
		writer:    writer,
		checker:   checker,
		strict:    cfg.StrictRevision,
		cancel:    cfg.CancelCompleted,
		repl:      cfg.Replicator,
		logger:    logger,
	}
}

// Run probes every active job once, oldest first, and processes the ones
// that reached a terminal state. Pending jobs are left untouched for the
// next invocation; Run returns success even when some jobs are pending.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	regs, err := r.store.List()
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}

	summary := &Summary{}
	for i := range regs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		r.processJob(ctx, &regs[i], summary)
	}

	r.logger.Info("Scan complete",
		zap.Int("processed", summary.Processed),
		zap.Int("pending", summary.Pending),
		zap.Int("failed", summary.Failed),
		zap.Int("files_written", summary.Stats.Written))

	return summary, nil
}

// processJob runs one job through probe, retrieve, match, commit, archive.
// Every disposition lands in exactly one of the summary counters.
func (r *Runner) processJob(ctx context.Context, reg *registry.Registry, summary *Summary) {
	status, err := r.prov.GetStatus(ctx, reg.JobID)
	if err != nil {
		// Probe errors are transient: surface them and leave the job
		// pending for the next scan.
		r.logger.Warn("Status probe failed",
			zap.String("job_id", reg.JobID),
			zap.Error(err))
		_ = r.writer.WriteError(ctx, &output.ErrorRecord{
			Code:    output.ErrCodeProbeFailed,
			Message: err.Error(),
			JobID:   reg.JobID,
		})
		summary.Pending++
		return
	}

	if len(status.Raw) > 0 {
		if err := r.store.WriteSnapshot(reg.JobID, status.Raw); err != nil {
			r.logger.Warn("Failed to write status snapshot",
				zap.String("job_id", reg.JobID),
				zap.Error(err))
		}
	}
	_ = r.writer.WriteProbe(ctx, &output.ProbeRecord{
		JobID:       reg.JobID,
		Status:      string(status.Status),
		Terminal:    status.Terminal,
		ErrorDetail: status.ErrorDetail,
	})

	if !status.Terminal {
		summary.Pending++
		return
	}

	if status.Status == batch.StatusFailed || status.Status == batch.StatusCancelled {
		r.failJob(ctx, reg.JobID, summary, &output.ErrorRecord{
			Code:    output.ErrCodeRemoteFailed,
			Message: remoteFailureMessage(status),
			JobID:   reg.JobID,
		})
		return
	}

	records, err := r.retriever.Retrieve(ctx, reg.JobID)
	if err != nil {
		if errors.Is(err, results.ErrEmptyResults) {
			// The remote job claims success but delivered nothing usable,
			// even after the retry. Terminal.
			r.failJob(ctx, reg.JobID, summary, &output.ErrorRecord{
				Code:    output.ErrCodeEmptyResults,
				Message: err.Error(),
				JobID:   reg.JobID,
			})
			return
		}
		// Fetch errors are transient, same as probe errors.
		r.logger.Warn("Result retrieval failed",
			zap.String("job_id", reg.JobID),
			zap.Error(err))
		_ = r.writer.WriteError(ctx, &output.ErrorRecord{
			Code:    output.ErrCodeProbeFailed,
			Message: err.Error(),
			JobID:   reg.JobID,
		})
		summary.Pending++
		return
	}

	stats, err := r.commitRecords(ctx, reg, records)
	if err != nil {
		code := output.ErrCodeInternal
		if revision.IsDrift(err) {
			code = output.ErrCodeRevisionDrift
		}
		_ = r.writer.WriteError(ctx, &output.ErrorRecord{
			Code:    code,
			Message: err.Error(),
			JobID:   reg.JobID,
		})
		summary.Pending++
		return
	}
	summary.Stats.Add(*stats)

	// Partial success is still success: a job with skips or mismatches
	// archives to processed, never back to pending.
	if err := r.archiver.Archive(reg.JobID, registry.AreaProcessed); err != nil {
		r.logger.Error("Failed to archive processed job",
			zap.String("job_id", reg.JobID),
			zap.Error(err))
		_ = r.writer.WriteError(ctx, &output.ErrorRecord{
			Code:    output.ErrCodeInternal,
			Message: err.Error(),
			JobID:   reg.JobID,
		})
		summary.Pending++
		return
	}
	summary.Processed++
	r.cleanupRemote(ctx, reg.JobID)
}

// commitRecords matches records to the registry and writes accepted
// content, pinning the working tree first when strict mode is on.
func (r *Runner) commitRecords(ctx context.Context, reg *registry.Registry, records []batch.ResultRecord) (*results.Stats, error) {
	if r.strict && reg.SourceRevision != "" {
		restore, err := r.checker.Pin(ctx, reg.PackagePath, reg.SourceRevision)
		if err != nil {
			return nil, fmt.Errorf("pin working tree for %s: %w", reg.JobID, err)
		}
		defer func() {
			if err := restore(ctx); err != nil {
				r.logger.Error("Failed to restore working tree",
					zap.String("job_id", reg.JobID),
					zap.Error(err))
			}
		}()
	} else {
		if err := r.checker.Verify(ctx, reg.PackagePath, reg.SourceRevision, false); err != nil {
			return nil, err
		}
	}

	outcome := results.MatchResults(reg, records, r.logger)
	committer := results.NewCommitter(reg.PackagePath, r.writer, r.logger)
	return committer.Commit(ctx, reg.JobID, outcome)
}

// failJob records the failure and archives the job to the failed area. The
// diagnostic snapshot travels with the registry.
func (r *Runner) failJob(ctx context.Context, jobID string, summary *Summary, rec *output.ErrorRecord) {
	_ = r.writer.WriteError(ctx, rec)
	if err := r.archiver.Archive(jobID, registry.AreaFailed); err != nil {
		r.logger.Error("Failed to archive failed job",
			zap.String("job_id", jobID),
			zap.Error(err))
		summary.Pending++
		return
	}
	summary.Failed++
	r.cleanupRemote(ctx, jobID)
}

// cleanupRemote frees provider quota and mirrored copies once a job has
// left the active area. Both are best effort.
func (r *Runner) cleanupRemote(ctx context.Context, jobID string) {
	if r.cancel {
		if err := r.prov.CancelBatch(ctx, jobID); err != nil {
			r.logger.Warn("Failed to cancel remote job",
				zap.String("job_id", jobID),
				zap.Error(err))
		}
	}
	if r.repl != nil {
		if err := r.repl.Remove(ctx, r.store, jobID); err != nil {
			r.logger.Warn("Failed to remove mirrored artifacts",
				zap.String("job_id", jobID),
				zap.Error(err))
		}
	}
}

// ProcessArtifact commits one job directly from a result artifact file,
// bypassing the provider entirely. Used to replay a downloaded artifact or
// to reprocess a job whose provider-side record has expired.
func (r *Runner) ProcessArtifact(ctx context.Context, jobID, artifactPath string) (*results.Stats, error) {
	reg, err := r.store.Get(jobID)
	if err != nil {
		return nil, fmt.Errorf("load registry for %s: %w", jobID, err)
	}

	replay, err := file.New(artifactPath, r.logger)
	if err != nil {
		return nil, err
	}
	records, err := replay.FetchResults(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", artifactPath, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("artifact %s: %w", artifactPath, results.ErrEmptyResults)
	}

	stats, err := r.commitRecords(ctx, reg, records)
	if err != nil {
		return nil, err
	}

	if err := r.archiver.Archive(jobID, registry.AreaProcessed); err != nil {
		return stats, fmt.Errorf("archive job %s: %w", jobID, err)
	}
	r.cleanupRemote(ctx, jobID)
	return stats, nil
}

func remoteFailureMessage(status *provider.StatusResult) string {
	if status.ErrorDetail != "" {
		return status.ErrorDetail
	}
	return fmt.Sprintf("remote job ended with status %s", status.Status)
}
