// Package config loads process configuration for the doclift CLI.
//
// Precedence: runtime overrides > environment (DOCLIFT_*) > config file >
// defaults. The config file is optional; everything works out of the box
// with defaults plus the provider API key in the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Config is the resolved process configuration.
type Config struct {
	Jobs        JobsConfig
	Provider    ProviderConfig
	Submit      SubmitConfig
	CommitCheck CommitCheckConfig
	Scan        ScanConfig
	Mirror      MirrorConfig
}

// JobsConfig locates the on-disk job areas.
type JobsConfig struct {
	// Root holds the active area; processed/, failed/, and submitted/
	// live beneath it. A leading ~ expands to the home directory.
	Root string
}

// ProviderConfig selects and configures the batch provider.
type ProviderConfig struct {
	Name string

	// APIKeyEnv names the environment variable holding the API key. The
	// key itself never appears in config files.
	APIKeyEnv string

	BaseURL    string
	APIVersion string

	// Model is the fallback when a job manifest does not set one.
	Model string
}

// APIKey reads the key from the configured environment variable.
func (p ProviderConfig) APIKey() string {
	return os.Getenv(p.APIKeyEnv)
}

// SubmitConfig bounds the request-generation fan-out.
type SubmitConfig struct {
	Concurrency int
	RateLimit   float64
}

// CommitCheckConfig controls the commit-consistency check.
type CommitCheckConfig struct {
	// Strict pins the working tree to each job's recorded revision
	// before committing. Off by default: drift is a warning.
	Strict bool
}

// ScanConfig tunes the scan loop.
type ScanConfig struct {
	// CancelCompleted cancels remote jobs after commit to free quota.
	CancelCompleted bool
}

// MirrorConfig configures optional cross-host artifact mirroring.
type MirrorConfig struct {
	Enabled  bool
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
	Profile  string
}

var (
	configMu  sync.RWMutex
	appConfig *Config
)

// Load resolves configuration and caches it for GetConfig. Optional
// runtime overrides take precedence over environment and file values.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("doclift")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".doclift"))
	}

	v.SetEnvPrefix("DOCLIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// Overrides use Set so they outrank environment variables.
	for _, o := range overrides {
		applyOverrides(v, "", o)
	}

	cfg := Config{
		Jobs: JobsConfig{
			Root: v.GetString("jobs.root"),
		},
		Provider: ProviderConfig{
			Name:       v.GetString("provider.name"),
			APIKeyEnv:  v.GetString("provider.api_key_env"),
			BaseURL:    v.GetString("provider.base_url"),
			APIVersion: v.GetString("provider.api_version"),
			Model:      v.GetString("provider.model"),
		},
		Submit: SubmitConfig{
			Concurrency: v.GetInt("submit.concurrency"),
			RateLimit:   v.GetFloat64("submit.rate_limit"),
		},
		CommitCheck: CommitCheckConfig{
			Strict: v.GetBool("commit_check.strict"),
		},
		Scan: ScanConfig{
			CancelCompleted: v.GetBool("scan.cancel_completed"),
		},
		Mirror: MirrorConfig{
			Enabled:  v.GetBool("mirror.enabled"),
			Bucket:   v.GetString("mirror.bucket"),
			Prefix:   v.GetString("mirror.prefix"),
			Region:   v.GetString("mirror.region"),
			Endpoint: v.GetString("mirror.endpoint"),
			Profile:  v.GetString("mirror.profile"),
		},
	}

	root, err := expandHome(cfg.Jobs.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve jobs root: %w", err)
	}
	cfg.Jobs.Root = root

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()

	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil before
// the first Load.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("jobs.root", "~/.doclift/jobs")

	v.SetDefault("provider.name", "anthropic")
	v.SetDefault("provider.api_key_env", "ANTHROPIC_API_KEY")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.api_version", "")
	v.SetDefault("provider.model", "")

	v.SetDefault("submit.concurrency", 5)
	v.SetDefault("submit.rate_limit", 0.0)

	v.SetDefault("commit_check.strict", false)

	v.SetDefault("scan.cancel_completed", false)

	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.bucket", "")
	v.SetDefault("mirror.prefix", "doclift")
	v.SetDefault("mirror.region", "")
	v.SetDefault("mirror.endpoint", "")
	v.SetDefault("mirror.profile", "")
}

func applyOverrides(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			applyOverrides(v, key, nested)
			continue
		}
		v.Set(key, val)
	}
}

// expandHome resolves a leading ~ in a path.
func expandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
