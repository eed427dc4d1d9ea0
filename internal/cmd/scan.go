package cmd

import (
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doclift/doclift/internal/config"
	"github.com/doclift/doclift/internal/observability"
	"github.com/doclift/doclift/pkg/output"
	"github.com/doclift/doclift/pkg/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Probe all pending jobs and commit completed results",
	Long: `Probe every active job once, retrieve and commit the ones that
completed, and archive them to processed/ or failed/.

A scan never blocks on a running remote job: pending jobs are left for the
next invocation, and a run with pending jobs still exits successfully. The
command is designed to be invoked repeatedly, e.g. from cron.

Example:
  doclift scan
  doclift scan --output scan.jsonl
  doclift scan --strict`,
	RunE: runScan,
}

var (
	scanOutput string
	scanStrict bool
	scanCancel bool
	scanPull   bool
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "", "Write JSONL records to a file instead of stdout")
	scanCmd.Flags().BoolVar(&scanStrict, "strict", false, "Pin the working tree to each job's recorded revision before committing")
	scanCmd.Flags().BoolVar(&scanCancel, "cancel-completed", false, "Cancel remote jobs after committing to free provider quota")
	scanCmd.Flags().BoolVar(&scanPull, "pull", false, "Pull mirrored jobs from object storage before scanning")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.GetConfig()

	prov, err := newProvider(cfg)
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to create provider", err)
	}

	runID := uuid.New().String()
	writer, cleanup, err := newWriter(scanOutput, runID)
	if err != nil {
		observability.CLILogger.Error("Failed to create writer", zap.Error(err))
		return exitError(foundry.ExitFileWriteError, "Failed to create output", err)
	}
	defer cleanup()

	store := jobsStore()

	runnerCfg := scan.Config{
		Store:           store,
		Provider:        prov,
		Writer:          writer,
		StrictRevision:  scanStrict || cfg.CommitCheck.Strict,
		CancelCompleted: scanCancel || cfg.Scan.CancelCompleted,
		Logger:          observability.CLILogger,
	}

	mir, merr := newMirror(ctx, cfg)
	if merr != nil {
		observability.CLILogger.Warn("Mirror unavailable", zap.Error(merr))
	} else if mir != nil {
		runnerCfg.Replicator = mir
		if scanPull {
			pulled, err := mir.PullAll(ctx, store)
			if err != nil {
				observability.CLILogger.Warn("Mirror pull failed", zap.Error(err))
			} else if len(pulled) > 0 {
				observability.CLILogger.Info("Pulled mirrored jobs",
					zap.Strings("job_ids", pulled))
			}
		}
	}

	start := time.Now()
	summary, err := scan.New(runnerCfg).Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			observability.CLILogger.Warn("Scan cancelled")
			return exitError(foundry.ExitSignalInt, "Scan cancelled", err)
		}
		observability.CLILogger.Error("Scan failed", zap.Error(err))
		return exitError(foundry.ExitFileReadError, "Scan failed", err)
	}
	elapsed := time.Since(start)

	if err := writer.WriteSummary(ctx, &output.SummaryRecord{
		JobsProcessed:   summary.Processed,
		JobsPending:     summary.Pending,
		JobsFailed:      summary.Failed,
		FilesWritten:    summary.Stats.Written,
		FilesSkipped:    summary.Stats.Skipped,
		FilesMismatched: summary.Stats.Mismatched,
		UnitDelta:       summary.Stats.UnitDelta,
		Duration:        elapsed,
		DurationHuman:   elapsed.Round(time.Millisecond).String(),
	}); err != nil {
		observability.CLILogger.Warn("Failed to write summary record", zap.Error(err))
	}

	// Pending jobs are not an error.
	return nil
}
