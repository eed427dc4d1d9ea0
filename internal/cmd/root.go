// Package cmd implements the doclift command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doclift/doclift/internal/config"
	"github.com/doclift/doclift/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "doclift",
	Short: "Batch code transformation via asynchronous LLM jobs",
	Long: `doclift coordinates asynchronous batch jobs that transform source
files in bulk: generating documentation comments or unit tests through a
provider's batch API.

A job outlives the process that created it. Submission writes a durable
registry; later invocations probe status, retrieve results, match them back
to the original files, and commit the accepted content.

Typical flow:
  doclift submit --job docs.yaml
  doclift scan                      # run periodically until jobs finish
  doclift jobs list`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		observability.InitCLILogger("doclift", rootVerbose)
		if _, err := config.Load(cmd.Context()); err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		return nil
	},
}

var rootVerbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")
}

// versionInfo holds build-time version metadata.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build-time version metadata, called from main.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate)
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	defer observability.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if coded, ok := err.(*codedError); ok {
			return coded.code
		}
		return 1
	}
	return 0
}

// codedError carries a foundry exit code through cobra's error return.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

// exitError wraps err so the CLI exits with the given foundry code.
func exitError(code int, message string, err error) error {
	if err == nil {
		return &codedError{code: code, err: fmt.Errorf("%s", message)}
	}
	return &codedError{code: code, err: fmt.Errorf("%s: %w", message, err)}
}
