package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/doclift/doclift/internal/config"
	"github.com/doclift/doclift/internal/observability"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the doclift installation",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	log := observability.CLILogger
	cfg := config.GetConfig()

	log.Info("=== doclift doctor ===")
	log.Info("")
	log.Info("Running diagnostic checks...")
	log.Info("")

	const totalChecks = 4
	allPassed := true
	checkNum := 0

	checkNum++
	log.Info(fmt.Sprintf("[%d/%d] Checking environment... ✅ %s/%s (%s)",
		checkNum, totalChecks, runtime.GOOS, runtime.GOARCH, runtime.Version()))

	checkNum++
	if key := cfg.Provider.APIKey(); key != "" {
		log.Info(fmt.Sprintf("[%d/%d] Checking provider credentials... ✅ %s is set",
			checkNum, totalChecks, cfg.Provider.APIKeyEnv))
	} else {
		allPassed = false
		log.Warn(fmt.Sprintf("[%d/%d] Checking provider credentials... ⚠️  %s is not set",
			checkNum, totalChecks, cfg.Provider.APIKeyEnv))
	}

	checkNum++
	if err := checkJobsRoot(cfg.Jobs.Root); err != nil {
		log.Error(fmt.Sprintf("[%d/%d] Checking jobs root... ❌ %s", checkNum, totalChecks, cfg.Jobs.Root))
		return exitError(foundry.ExitFileWriteError, "Jobs root is not writable", err)
	}
	log.Info(fmt.Sprintf("[%d/%d] Checking jobs root... ✅ %s", checkNum, totalChecks, cfg.Jobs.Root))

	checkNum++
	if gitPath, err := exec.LookPath("git"); err == nil {
		log.Info(fmt.Sprintf("[%d/%d] Checking git... ✅ %s", checkNum, totalChecks, gitPath))
	} else {
		allPassed = false
		log.Warn(fmt.Sprintf("[%d/%d] Checking git... ⚠️  not found (commit-consistency checks disabled)",
			checkNum, totalChecks))
	}

	log.Info("")
	if allPassed {
		log.Info("✅ All checks passed! Your doclift installation is healthy.")
	} else {
		log.Warn("⚠️  Some checks failed. Review the output above for details.")
	}
	log.Info("")
	log.Info("=== End Diagnostics ===")
	return nil
}

// checkJobsRoot verifies the jobs root exists (creating it if needed) and
// is writable.
func checkJobsRoot(root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	probe := filepath.Join(root, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok\n"), 0644); err != nil {
		return err
	}
	return os.Remove(probe)
}
