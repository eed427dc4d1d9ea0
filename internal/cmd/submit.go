package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doclift/doclift/internal/config"
	"github.com/doclift/doclift/internal/observability"
	"github.com/doclift/doclift/pkg/manifest"
	"github.com/doclift/doclift/pkg/revision"
	"github.com/doclift/doclift/pkg/submit"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a batch job from a manifest",
	Long: `Submit a transformation batch for one package as defined in a YAML
or JSON job manifest.

The manifest selects the files, the generation mode (docs or tests), and
the model. Submission writes a durable job registry; the job is then
processed by later 'doclift scan' invocations.

Example:
  doclift submit --job docs.yaml
  doclift submit --job docs.yaml --dry-run`,
	RunE: runSubmit,
}

var (
	submitJobPath string
	submitDryRun  bool
)

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVarP(&submitJobPath, "job", "j", "", "Path to job manifest (required)")
	submitCmd.Flags().BoolVar(&submitDryRun, "dry-run", false, "Show the submission plan without submitting")

	_ = submitCmd.MarkFlagRequired("job")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.GetConfig()

	m, err := manifest.Load(submitJobPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load manifest",
			zap.String("path", submitJobPath),
			zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}
	if m.Generate.Model == "" {
		m.Generate.Model = cfg.Provider.Model
	}
	applySubmitDefaults(m, cfg.Submit)

	observability.CLILogger.Debug("Loaded manifest",
		zap.String("path", submitJobPath),
		zap.String("package", m.Package.Path),
		zap.String("mode", m.Generate.Mode),
		zap.Strings("includes", m.Match.Includes))

	gen, err := submit.NewTemplateGenerator(m.Generate.Mode, m.Generate.TemplatePath)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid generation settings", err)
	}

	if submitDryRun {
		s := submit.New(jobsStore(), nil, gen, observability.CLILogger)
		plan, err := s.Plan(m)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Planning failed", err)
		}
		return showSubmitPlan(m, plan)
	}

	prov, err := newProvider(cfg)
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to create provider", err)
	}

	// Record the working-tree revision for the commit-consistency check.
	// Unversioned trees submit with an empty revision.
	checker := revision.NewChecker(nil, observability.CLILogger)
	head, err := checker.Head(ctx, m.Package.Path)
	if err != nil {
		observability.CLILogger.Warn("Could not resolve working-tree revision", zap.Error(err))
	}

	store := jobsStore()
	s := submit.New(store, prov, gen, observability.CLILogger)
	reg, err := s.Submit(ctx, m, submit.Options{SourceRevision: head})
	if err != nil {
		observability.CLILogger.Error("Submission failed", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Submission failed", err)
	}

	if mir, merr := newMirror(ctx, cfg); merr != nil {
		observability.CLILogger.Warn("Mirror unavailable", zap.Error(merr))
	} else if mir != nil {
		if err := mir.Push(ctx, store, reg.JobID); err != nil {
			observability.CLILogger.Warn("Failed to mirror job", zap.Error(err))
		}
	}

	fmt.Printf("Submitted job %s (%d items, model %s)\n", reg.JobID, len(reg.Items), reg.Model)
	fmt.Println("Run 'doclift scan' to check progress and commit results.")
	return nil
}

// applySubmitDefaults fills fan-out settings the manifest leaves unset
// from process configuration, so DOCLIFT_SUBMIT_* and config-file values
// take effect. Explicit manifest values win.
func applySubmitDefaults(m *manifest.Manifest, sub config.SubmitConfig) {
	if m.Generate.Concurrency == 0 && sub.Concurrency > 0 {
		m.Generate.Concurrency = sub.Concurrency
	}
	if m.Generate.RateLimit == 0 && sub.RateLimit > 0 {
		m.Generate.RateLimit = sub.RateLimit
	}
}

// showSubmitPlan displays what would be submitted without executing.
func showSubmitPlan(m *manifest.Manifest, plan *submit.Plan) error {
	fmt.Println("=== Submission Plan (dry-run) ===")
	fmt.Println()
	fmt.Printf("Package:     %s\n", plan.PackagePath)
	fmt.Printf("Mode:        %s\n", m.Generate.Mode)
	if m.Generate.Model != "" {
		fmt.Printf("Model:       %s\n", m.Generate.Model)
	}
	fmt.Printf("Max tokens:  %d\n", m.Generate.MaxTokens)
	fmt.Printf("Concurrency: %d\n", m.Generate.Concurrency)
	fmt.Println()
	fmt.Printf("Items (%d):\n", len(plan.Items))
	for _, item := range plan.Items {
		marker := " "
		if item.EntryPoint {
			marker = "*"
		}
		fmt.Printf("  [%3d] %s %s\n", item.StableIndex, marker, item.FilePath)
	}
	fmt.Println()
	fmt.Println("Manifest validated successfully. Remove --dry-run to submit.")
	return nil
}
