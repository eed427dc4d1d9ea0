package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/doclift/doclift/pkg/registry"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect job registries",
	Long: `Inspect job registries across the lifecycle areas.

This command group is designed to be agent-friendly:

- stable job ids
- predictable on-disk locations
- optional JSON output for machine parsing`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs in a lifecycle area",
	RunE:  runJobsList,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job_id>",
	Short: "Show one job's registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

var (
	jobsArea string
	jobsJSON bool
)

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)

	jobsCmd.PersistentFlags().StringVar(&jobsArea, "area", "active", "Lifecycle area: active, processed, or failed")
	jobsCmd.PersistentFlags().BoolVar(&jobsJSON, "json", false, "Output as JSON")
}

func parseArea(s string) (registry.Area, error) {
	switch s {
	case "active":
		return registry.AreaActive, nil
	case "processed":
		return registry.AreaProcessed, nil
	case "failed":
		return registry.AreaFailed, nil
	default:
		return "", fmt.Errorf("unknown area %q (want active, processed, or failed)", s)
	}
}

func runJobsList(cmd *cobra.Command, args []string) error {
	area, err := parseArea(jobsArea)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --area", err)
	}

	store := jobsStore()
	regs, err := listArea(store, area)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to list jobs", err)
	}

	if jobsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(regs)
	}

	if len(regs) == 0 {
		fmt.Printf("No jobs in %s area.\n", area)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tCREATED\tITEMS\tMODEL\tPACKAGE")
	for _, reg := range regs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			reg.JobID,
			reg.CreatedAt.Format("2006-01-02 15:04"),
			len(reg.Items),
			reg.Model,
			reg.PackagePath)
	}
	return w.Flush()
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	area, err := parseArea(jobsArea)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --area", err)
	}

	reg, err := jobsStore().GetFromArea(args[0], area)
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Job not found", err)
	}

	if jobsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reg)
	}

	fmt.Printf("Job:      %s\n", reg.JobID)
	fmt.Printf("Provider: %s\n", reg.Provider)
	fmt.Printf("Model:    %s\n", reg.Model)
	fmt.Printf("Package:  %s\n", reg.PackagePath)
	fmt.Printf("Created:  %s\n", reg.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if reg.SourceRevision != "" {
		fmt.Printf("Revision: %s\n", reg.SourceRevision)
	}
	fmt.Printf("Items (%d):\n", len(reg.Items))
	for _, item := range reg.Items {
		marker := " "
		if item.EntryPoint {
			marker = "*"
		}
		fmt.Printf("  [%3d] %s %s\n", item.StableIndex, marker, item.FilePath)
	}
	return nil
}

// listArea returns the registries in one lifecycle area, using the store's
// ordered listing for the active area and a directory walk for archives.
func listArea(store *registry.Store, area registry.Area) ([]registry.Registry, error) {
	if area == registry.AreaActive {
		return store.List()
	}

	entries, err := os.ReadDir(store.AreaDir(area))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var regs []registry.Registry
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") ||
			strings.HasSuffix(name, ".results.jsonl") ||
			strings.HasSuffix(name, ".status.json") {
			continue
		}
		jobID := strings.TrimSuffix(filepath.Base(name), ".json")
		reg, err := store.GetFromArea(jobID, area)
		if err != nil {
			continue
		}
		regs = append(regs, *reg)
	}
	return regs, nil
}
