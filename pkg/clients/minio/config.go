package minio

import (
	"errors"
	"time"
)

// maxStatementTruncateLen is the maximum length for operation descriptions
// recorded in OpenTelemetry trace spans. Statements longer than this are
// truncated to prevent sensitive data (object keys, bucket names containing
// PII) from leaking into telemetry systems. The value 100 is intentionally
// conservative.
const maxStatementTruncateLen = 100

// Default configuration settings.
const (
	// DefaultEndpoint is the MinIO endpoint used when none is configured.
	DefaultEndpoint = "localhost:9000"

	// DefaultBucket is the bucket holding the source-document corpus the
	// retrieval pipeline cites from.
	DefaultBucket = "askgrid-corpus"

	// DefaultRegion is the default S3 region for MinIO. MinIO supports
	// region configuration for S3 API compatibility.
	DefaultRegion = "us-east-1"

	// DefaultUseSSL enables TLS for the connection to MinIO.
	DefaultUseSSL = false

	// DefaultHealthTimeout is the maximum time for a health check probe
	// when the caller's context has no deadline.
	DefaultHealthTimeout = 5 * time.Second
)

// Secret is a string type that prevents accidental logging of sensitive values
// such as MinIO secret keys. Its [Secret.String] and [Secret.GoString]
// methods return a redacted placeholder. Use [Secret.Value] to retrieve the
// actual secret value.
type Secret string

// redacted is the placeholder string returned by Secret's string methods.
const redacted = "[REDACTED]"

// String returns "[REDACTED]" to prevent accidental logging of the secret.
func (s Secret) String() string {
	return redacted
}

// GoString returns "[REDACTED]" for fmt.Sprintf("%#v", secret) safety.
func (s Secret) GoString() string {
	return redacted
}

// Value returns the actual secret string. Handle the returned value with
// care; avoid logging, serializing, or storing it in plaintext.
func (s Secret) Value() string {
	return string(s)
}

// MarshalText implements encoding.TextMarshaler, returning "[REDACTED]" to
// prevent the secret from appearing in JSON, YAML, or other text-based
// serialization formats.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// Config holds the MinIO connection configuration for the source-document
// corpus store. Fields can be populated from YAML configuration files or
// environment variables through the layered configuration loader.
//
// # Example
//
//	cfg := minio.DefaultConfig()
//	cfg.AccessKey = os.Getenv("MINIO_ACCESS_KEY")
//	cfg.SecretKey = minio.Secret(os.Getenv("MINIO_SECRET_KEY"))
//	client, err := minio.NewClient(ctx, *cfg)
type Config struct {
	// Endpoint is the MinIO server hostname and port (e.g. "localhost:9000").
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint" env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`

	// AccessKey is the MinIO access key for authentication.
	AccessKey string `json:"access_key,omitempty" yaml:"access_key" env:"MINIO_ACCESS_KEY"`

	// SecretKey is the MinIO secret key. Uses the [Secret] type to
	// prevent accidental logging.
	SecretKey Secret `json:"-" yaml:"secret_key" env:"MINIO_SECRET_KEY"`

	// Bucket is the bucket holding the source-document corpus.
	Bucket string `json:"bucket,omitempty" yaml:"bucket" env:"MINIO_BUCKET" envDefault:"askgrid-corpus"`

	// Region is the S3 region for the MinIO server.
	Region string `json:"region,omitempty" yaml:"region" env:"MINIO_REGION" envDefault:"us-east-1"`

	// UseSSL enables TLS for the connection to MinIO.
	UseSSL bool `json:"use_ssl,omitempty" yaml:"use_ssl" env:"MINIO_USE_SSL"`

	// HealthBucket is the bucket name used for health checks. When empty,
	// the configured corpus [Config.Bucket] is probed instead. The health
	// check calls BucketExists, which tests connectivity without requiring
	// the bucket to actually exist.
	HealthBucket string `json:"health_bucket,omitempty" yaml:"health_bucket" env:"MINIO_HEALTH_BUCKET"`
}

// DefaultConfig returns a Config with default values for a local MinIO
// instance. Callers should override fields as needed before passing the
// config to [NewClient].
func DefaultConfig() *Config {
	return &Config{
		Endpoint: DefaultEndpoint,
		Bucket:   DefaultBucket,
		Region:   DefaultRegion,
		UseSSL:   DefaultUseSSL,
	}
}

// Validate checks the configuration for invalid values and applies defaults
// for zero-valued fields. Returns the first validation error encountered,
// or nil if the configuration is valid.
//
// Validation rules:
//   - Endpoint must not be empty
//   - AccessKey must not be empty
//   - Bucket defaults to "askgrid-corpus" if empty
//   - Region defaults to "us-east-1" if empty
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio: config endpoint must not be empty")
	}
	if c.AccessKey == "" {
		return errors.New("minio: config access_key must not be empty")
	}
	if c.Bucket == "" {
		c.Bucket = DefaultBucket
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	return nil
}

// truncateStatement truncates an operation description to
// [maxStatementTruncateLen] runes for safe inclusion in OpenTelemetry trace
// spans. Truncated statements are suffixed with "..." to indicate truncation.
// The truncation is rune-aware to avoid splitting multi-byte UTF-8 characters.
func truncateStatement(s string) string {
	runes := []rune(s)
	if len(runes) <= maxStatementTruncateLen {
		return s
	}
	return string(runes[:maxStatementTruncateLen]) + "..."
}
