package anthropic

import (
	"errors"
	"strings"
	"time"
)

// Defaults for the Anthropic Message Batches API.
const (
	DefaultBaseURL    = "https://api.anthropic.com"
	DefaultAPIVersion = "2023-06-01"
	DefaultModel      = "claude-sonnet-4-5"
	DefaultMaxTokens  = 8192
	DefaultTimeout    = 120 * time.Second
)

// Config configures the Anthropic batch provider.
type Config struct {
	// APIKey authenticates requests. Required.
	APIKey string

	// BaseURL overrides the API endpoint. Optional; used for testing and
	// API-compatible gateways.
	BaseURL string

	// APIVersion is the anthropic-version header value. Optional.
	APIVersion string

	// Timeout bounds each HTTP request. Optional.
	Timeout time.Duration
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("api key is required")
	}
	return nil
}

func (c *Config) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return DefaultBaseURL
}

func (c *Config) apiVersion() string {
	if c.APIVersion != "" {
		return c.APIVersion
	}
	return DefaultAPIVersion
}

func (c *Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}
