// Package mirror replicates active-area job artifacts to object storage so
// a job submitted on one host can be resumed on another.
//
// Mirroring is best effort: the local registry stays authoritative, and a
// mirror failure never fails the job it mirrors.
package mirror

// Config configures an object-storage mirror.
//
// Authentication follows the AWS SDK v2 default chain; explicit
// AccessKeyID/SecretAccessKey take precedence when set. For S3-compatible
// stores (MinIO, Wasabi) set Endpoint and typically ForcePathStyle.
type Config struct {
	// Bucket is the bucket name (required).
	Bucket string

	// Prefix is prepended to every mirrored key. Use it to share one
	// bucket across projects, e.g. "doclift/teamA".
	Prefix string

	// Region is the AWS region. Defaults to us-east-1 when neither
	// config nor environment resolves one and no custom endpoint is set.
	Region string

	// Endpoint is a custom endpoint URL for S3-compatible stores.
	Endpoint string

	// Profile selects a shared-config profile. Empty uses the default
	// chain.
	Profile string

	// AccessKeyID and SecretAccessKey are explicit credentials. Both
	// must be set together.
	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle forces path-style URLs, required by most
	// S3-compatible stores.
	ForcePathStyle bool
}

// DefaultAWSRegion is the fallback region when none resolves.
const DefaultAWSRegion = "us-east-1"

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return &ConfigError{Field: "Bucket", Message: "bucket name is required"}
	}
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return &ConfigError{
			Field:   "AccessKeyID/SecretAccessKey",
			Message: "both access key ID and secret access key must be provided together",
		}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "mirror config: " + e.Field + ": " + e.Message
}
