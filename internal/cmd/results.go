package cmd

import (
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doclift/doclift/internal/config"
	"github.com/doclift/doclift/internal/observability"
	"github.com/doclift/doclift/pkg/scan"
)

var resultsCmd = &cobra.Command{
	Use:   "results <job_id>",
	Short: "Commit one job's results from a result artifact",
	Long: `Process one job directly from a result artifact file, bypassing the
provider entirely.

By default the job's cached artifact from the active area is used; --artifact
replays an arbitrary JSONL file (e.g. one downloaded by hand). The job is
archived to processed/ on success.

Example:
  doclift results msgbatch_abc123
  doclift results msgbatch_abc123 --artifact ./downloaded.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runResults,
}

var (
	resultsArtifact string
	resultsOutput   string
	resultsStrict   bool
)

func init() {
	rootCmd.AddCommand(resultsCmd)

	resultsCmd.Flags().StringVar(&resultsArtifact, "artifact", "", "Result artifact to replay (defaults to the job's cached artifact)")
	resultsCmd.Flags().StringVarP(&resultsOutput, "output", "o", "", "Write JSONL records to a file instead of stdout")
	resultsCmd.Flags().BoolVar(&resultsStrict, "strict", false, "Pin the working tree to the job's recorded revision before committing")
}

func runResults(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.GetConfig()
	jobID := args[0]
	store := jobsStore()

	artifact := resultsArtifact
	if artifact == "" {
		artifact = store.ResultsPath(jobID)
	}
	if _, err := os.Stat(artifact); err != nil {
		return exitError(foundry.ExitFileNotFound, "Result artifact not found", err)
	}

	runID := uuid.New().String()
	writer, cleanup, err := newWriter(resultsOutput, runID)
	if err != nil {
		observability.CLILogger.Error("Failed to create writer", zap.Error(err))
		return exitError(foundry.ExitFileWriteError, "Failed to create output", err)
	}
	defer cleanup()

	// No provider is contacted; the artifact stands in for the remote job.
	runner := scan.New(scan.Config{
		Store:          store,
		Writer:         writer,
		StrictRevision: resultsStrict || cfg.CommitCheck.Strict,
		Logger:         observability.CLILogger,
	})

	stats, err := runner.ProcessArtifact(ctx, jobID, artifact)
	if err != nil {
		observability.CLILogger.Error("Failed to process artifact",
			zap.String("job_id", jobID),
			zap.String("artifact", artifact),
			zap.Error(err))
		return exitError(foundry.ExitFileReadError, "Failed to process artifact", err)
	}

	fmt.Printf("Committed job %s: %d written, %d skipped, %d mismatched\n",
		jobID, stats.Written, stats.Skipped, stats.Mismatched)
	return nil
}
