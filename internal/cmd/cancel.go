package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doclift/doclift/internal/config"
	"github.com/doclift/doclift/internal/observability"
	"github.com/doclift/doclift/pkg/provider"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <job_id>",
	Short: "Cancel a remote batch job",
	Long: `Ask the provider to cancel a batch job.

Cancellation frees provider-side quota. The local registry is left in the
active area; the next 'doclift scan' observes the cancelled status and
archives the job to failed/.

Example:
  doclift cancel msgbatch_abc123`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	jobID := args[0]

	prov, err := newProvider(config.GetConfig())
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to create provider", err)
	}

	if err := prov.CancelBatch(ctx, jobID); err != nil {
		if provider.IsNotFound(err) {
			return exitError(foundry.ExitInvalidArgument, "Job not found", err)
		}
		observability.CLILogger.Error("Cancellation failed",
			zap.String("job_id", jobID),
			zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Cancellation failed", err)
	}

	fmt.Printf("Requested cancellation of job %s\n", jobID)
	return nil
}
