package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/doclift/doclift/internal/config"
	"github.com/doclift/doclift/internal/observability"
	"github.com/doclift/doclift/pkg/mirror"
	"github.com/doclift/doclift/pkg/output"
	"github.com/doclift/doclift/pkg/provider"
	"github.com/doclift/doclift/pkg/provider/anthropic"
	"github.com/doclift/doclift/pkg/registry"
)

// jobsStore opens the registry store at the configured jobs root.
func jobsStore() *registry.Store {
	return registry.NewStore(config.GetConfig().Jobs.Root)
}

// newProvider builds the configured batch provider.
func newProvider(cfg *config.Config) (provider.BatchProvider, error) {
	switch cfg.Provider.Name {
	case "", "anthropic":
		key := cfg.Provider.APIKey()
		if key == "" {
			return nil, fmt.Errorf("API key not set; export %s", cfg.Provider.APIKeyEnv)
		}
		return anthropic.New(anthropic.Config{
			APIKey:     key,
			BaseURL:    cfg.Provider.BaseURL,
			APIVersion: cfg.Provider.APIVersion,
		}, observability.CLILogger)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider.Name)
	}
}

// newMirror builds the artifact mirror when enabled, nil otherwise.
func newMirror(ctx context.Context, cfg *config.Config) (*mirror.Mirror, error) {
	if !cfg.Mirror.Enabled {
		return nil, nil
	}
	return mirror.New(ctx, mirror.Config{
		Bucket:   cfg.Mirror.Bucket,
		Prefix:   cfg.Mirror.Prefix,
		Region:   cfg.Mirror.Region,
		Endpoint: cfg.Mirror.Endpoint,
		Profile:  cfg.Mirror.Profile,
	}, observability.CLILogger)
}

// newWriter creates a JSONL record writer for the destination. Empty or
// "stdout" writes to standard output; a "file:" prefix is accepted.
// Returns the writer, a cleanup function, and any error.
func newWriter(dest, runID string) (output.Writer, func(), error) {
	if dest == "" || dest == "stdout" {
		w := output.NewJSONLWriter(os.Stdout, runID)
		return w, func() { _ = w.Close() }, nil
	}

	path := strings.TrimPrefix(dest, "file:")
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file %s: %w", path, err)
	}
	w := output.NewJSONLWriter(f, runID)
	cleanup := func() {
		_ = w.Close()
		_ = f.Close()
	}
	return w, cleanup, nil
}
