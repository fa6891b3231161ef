// Package redis provides a Redis client with OpenTelemetry tracing and
// structured error handling for AskGrid services. It backs the chat
// recent-history cache: each session keeps a capped list of its latest
// messages so the ask pipeline can read conversation context without a
// database round trip.
//
// # Connection Management
//
// The client wraps go-redis (github.com/redis/go-redis/v9) and adds
// cross-cutting concerns (tracing, error classification) transparently
// to all Redis operations. Connection pooling, reconnection, and retry
// are handled internally by go-redis.
//
// # Configuration
//
// Create a client using [NewClient] with a [Config]:
//
//	cfg := redis.DefaultConfig()
//	cfg.Password = redis.Secret("my-password")
//	client, err := redis.NewClient(ctx, *cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// For testing, use [NewFromClient] to inject a mock:
//
//	mock := &mockCmdable{}
//	client := redis.NewFromClient(mock, &redis.Config{DB: 0})
//
// # OpenTelemetry Tracing
//
// All Redis operations automatically create OpenTelemetry spans with
// standard database semantic attributes (db.system,
// db.redis.database_index, db.statement). Statements are truncated to
// 100 characters in spans so cached message content never reaches the
// telemetry backend.
package redis

import (
	"fmt"
	"net/url"
	"time"
)

// maxStatementTruncateLen is the maximum length for Redis command
// statements recorded in OpenTelemetry trace spans.
const maxStatementTruncateLen = 100

// Default connection pool and timeout settings.
const (
	// DefaultHost is the Redis hostname used when none is configured.
	DefaultHost = "localhost"

	// DefaultPort is the standard Redis port.
	DefaultPort = 6379

	// DefaultDB is the default Redis database index. Redis supports
	// databases numbered 0-15 by default.
	DefaultDB = 0

	// DefaultPoolSize is the maximum number of connections in the pool.
	DefaultPoolSize = 25

	// DefaultMinIdleConns is the minimum number of idle connections
	// maintained in the pool.
	DefaultMinIdleConns = 5

	// DefaultMaxRetries is the maximum number of retries before giving
	// up on a command. Set to 3 to handle transient network failures.
	DefaultMaxRetries = 3

	// DefaultDialTimeout is the maximum time to wait when establishing
	// a new connection to Redis.
	DefaultDialTimeout = 10 * time.Second

	// DefaultReadTimeout is the maximum time to wait for a read response
	// from Redis.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum time to wait for a write to
	// complete on the Redis connection.
	DefaultWriteTimeout = 5 * time.Second

	// DefaultHealthTimeout is the maximum time for a health check ping
	// when the caller's context has no deadline.
	DefaultHealthTimeout = 5 * time.Second
)

// Secret is a string type that prevents accidental logging of sensitive
// values such as Redis passwords. Its [Secret.String] and
// [Secret.GoString] methods return a redacted placeholder. Use
// [Secret.Value] to retrieve the actual secret value.
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

// MarshalText implements encoding.TextMarshaler, returning "[REDACTED]"
// to keep the secret out of JSON and YAML output.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// Config holds the Redis connection configuration. It supports both
// URI-based and structured configuration. When [Config.URI] is set, it
// takes precedence over individual fields (Host, Port, DB, Password).
//
// The struct tags allow loading through the pkg/config layered loader.
type Config struct {
	// URI is a Redis connection string (e.g.,
	// "redis://:password@host:6379/0" or "rediss://..." for TLS).
	// When set, Host, Port, DB, and Password are ignored.
	URI string `json:"uri,omitempty" yaml:"uri" env:"REDIS_URI"`

	// Host is the Redis server hostname or IP address.
	Host string `json:"host,omitempty" yaml:"host" env:"REDIS_HOST" envDefault:"localhost"`

	// Port is the Redis server port.
	Port int `json:"port,omitempty" yaml:"port" env:"REDIS_PORT" envDefault:"6379"`

	// DB is the Redis database index (0-15 by default).
	DB int `json:"db" yaml:"db" env:"REDIS_DB"`

	// Password is the Redis password. Uses the [Secret] type to prevent
	// accidental logging.
	Password Secret `json:"-" yaml:"-" env:"REDIS_PASSWORD"`

	// PoolSize is the maximum number of connections in the pool.
	PoolSize int `json:"pool_size,omitempty" yaml:"pool_size" env:"REDIS_POOL_SIZE"`

	// MinIdleConns is the minimum number of idle connections maintained
	// in the pool.
	MinIdleConns int `json:"min_idle_conns,omitempty" yaml:"min_idle_conns" env:"REDIS_MIN_IDLE_CONNS"`

	// MaxRetries is the maximum number of retries before giving up on a
	// command. Set to -1 to disable retries.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries" env:"REDIS_MAX_RETRIES"`

	// DialTimeout is the maximum time to wait when establishing a new
	// connection to Redis.
	DialTimeout time.Duration `json:"dial_timeout,omitempty" yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT"`

	// ReadTimeout is the maximum time to wait for a read response from
	// Redis.
	ReadTimeout time.Duration `json:"read_timeout,omitempty" yaml:"read_timeout" env:"REDIS_READ_TIMEOUT"`

	// WriteTimeout is the maximum time to wait for a write to complete
	// on the Redis connection.
	WriteTimeout time.Duration `json:"write_timeout,omitempty" yaml:"write_timeout" env:"REDIS_WRITE_TIMEOUT"`

	// TLSEnabled indicates whether to use TLS for the Redis connection.
	// When URI is set with the "rediss://" scheme, TLS is enabled
	// automatically.
	TLSEnabled bool `json:"tls_enabled,omitempty" yaml:"tls_enabled" env:"REDIS_TLS_ENABLED"`
}

// DefaultConfig returns a Config with default values. Callers should
// override fields as needed before passing the config to [NewClient].
func DefaultConfig() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		DB:           DefaultDB,
		PoolSize:     DefaultPoolSize,
		MinIdleConns: DefaultMinIdleConns,
		MaxRetries:   DefaultMaxRetries,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// Validate checks the configuration for invalid values and applies
// defaults for zero-valued fields. Returns the first validation error
// encountered, or nil if the configuration is valid.
//
// When [Config.URI] is set, structured fields (Host, Port, DB) are not
// validated because the URI takes precedence. Pool and timeout defaults
// are always applied when zero.
func (c *Config) Validate() error {
	c.applyDefaults()

	if c.URI != "" {
		u, err := url.Parse(c.URI)
		if err != nil {
			return fmt.Errorf("redis: config URI is invalid: %w", err)
		}
		if u.Scheme != "redis" && u.Scheme != "rediss" {
			return fmt.Errorf("redis: config URI scheme must be redis:// or rediss://, got %q", u.Scheme)
		}
		return nil
	}

	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("redis: config port must be between 1 and 65535, got %d", c.Port)
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("redis: config pool_size must be >= 1, got %d", c.PoolSize)
	}
	if c.MinIdleConns < 0 {
		return fmt.Errorf("redis: config min_idle_conns must be >= 0, got %d", c.MinIdleConns)
	}
	if c.PoolSize < c.MinIdleConns {
		return fmt.Errorf("redis: config pool_size (%d) must be >= min_idle_conns (%d)", c.PoolSize, c.MinIdleConns)
	}
	if c.DialTimeout < 0 {
		return fmt.Errorf("redis: config dial_timeout must not be negative, got %v", c.DialTimeout)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("redis: config read_timeout must not be negative, got %v", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("redis: config write_timeout must not be negative, got %v", c.WriteTimeout)
	}

	return nil
}

// applyDefaults sets default values for zero-valued pool and timeout
// fields.
func (c *Config) applyDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = DefaultMinIdleConns
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}

// truncateStatement truncates a Redis command statement to
// [maxStatementTruncateLen] runes for safe inclusion in OpenTelemetry
// trace spans. The truncation is rune-aware to avoid splitting
// multi-byte UTF-8 characters in message content.
func truncateStatement(s string) string {
	runes := []rune(s)
	if len(runes) <= maxStatementTruncateLen {
		return s
	}
	return string(runes[:maxStatementTruncateLen]) + "..."
}
