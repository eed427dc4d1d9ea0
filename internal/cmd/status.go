package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doclift/doclift/internal/config"
	"github.com/doclift/doclift/internal/observability"
	"github.com/doclift/doclift/pkg/provider"
)

var statusCmd = &cobra.Command{
	Use:   "status <job_id>",
	Short: "Probe one job's remote status",
	Long: `Probe the provider for one job's current status without retrieving
or committing anything.

The raw provider response is saved as the job's debug snapshot.

Example:
  doclift status msgbatch_abc123
  doclift status msgbatch_abc123 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

var statusJSON bool

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the raw provider response as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	jobID := args[0]

	prov, err := newProvider(config.GetConfig())
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to create provider", err)
	}

	st, err := prov.GetStatus(ctx, jobID)
	if err != nil {
		if provider.IsNotFound(err) {
			return exitError(foundry.ExitInvalidArgument, "Job not found", err)
		}
		observability.CLILogger.Error("Status probe failed",
			zap.String("job_id", jobID),
			zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Status probe failed", err)
	}

	if len(st.Raw) > 0 {
		if err := jobsStore().WriteSnapshot(jobID, st.Raw); err != nil {
			observability.CLILogger.Warn("Failed to write status snapshot", zap.Error(err))
		}
	}

	if statusJSON {
		var buf json.RawMessage = st.Raw
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(buf)
	}

	fmt.Printf("Job:      %s\n", jobID)
	fmt.Printf("Status:   %s\n", st.Status)
	fmt.Printf("Terminal: %v\n", st.Terminal)
	if st.ErrorDetail != "" {
		fmt.Printf("Detail:   %s\n", st.ErrorDetail)
	}
	if !st.Terminal {
		fmt.Println("\nThe job is still running. Run 'doclift scan' to commit results once it completes.")
	}
	return nil
}
