package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	agerr "github.com/askgrid/askgrid-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this
// package.
const tracerName = "github.com/askgrid/askgrid-core/pkg/clients/redis"

// Cmdable defines the interface for Redis command operations. This
// interface is satisfied by [*redis.Client] and by mock implementations
// for unit testing. It enables dependency injection via [NewFromClient]
// for testing without a real Redis instance.
//
// The interface is intentionally narrow: string commands for simple
// cache entries and list commands for the capped per-session
// recent-history lists.
type Cmdable interface {
	// Set sets the string value of a key with an optional expiration.
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd

	// Get returns the string value of a key.
	Get(ctx context.Context, key string) *redis.StringCmd

	// Del deletes one or more keys.
	Del(ctx context.Context, keys ...string) *redis.IntCmd

	// Exists returns the number of keys that exist from the specified keys.
	Exists(ctx context.Context, keys ...string) *redis.IntCmd

	// Expire sets an expiration on a key.
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd

	// TTL returns the remaining time to live of a key.
	TTL(ctx context.Context, key string) *redis.DurationCmd

	// RPush appends one or more values to a list.
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd

	// LRange returns a range of elements from a list.
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd

	// LTrim trims a list to the specified range of elements.
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd

	// LLen returns the length of a list.
	LLen(ctx context.Context, key string) *redis.IntCmd

	// Ping pings the Redis server.
	Ping(ctx context.Context) *redis.StatusCmd

	// Close closes the client connection.
	Close() error
}

// Compile-time interface compliance check.
var _ Cmdable = (*redis.Client)(nil)

// Client is a Redis client with OpenTelemetry tracing and structured
// error handling. It wraps a [Cmdable] (typically [*redis.Client]) and
// adds cross-cutting concerns transparently to all Redis operations.
//
// A Client is safe for concurrent use by multiple goroutines. Create
// one Client per Redis instance and share it across the application.
type Client struct {
	cmdable Cmdable
	config  *Config
	tracer  trace.Tracer
	dbIndex int
}

// NewClient creates a new Redis client with connection pooling. It
// validates the configuration, creates a go-redis client with the
// appropriate options, and verifies connectivity with a ping.
//
// The caller must call [Client.Close] when the client is no longer
// needed to release connection resources.
//
// Error codes returned:
//   - [agerr.CodeValidation]: invalid configuration
//   - [agerr.CodeUnavailableDependency]: cannot connect to Redis
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, agerr.Wrap(err, agerr.CodeValidation,
			"redis: invalid configuration")
	}

	var opts *redis.Options
	if cfg.URI != "" {
		var err error
		opts, err = redis.ParseURL(cfg.URI)
		if err != nil {
			return nil, agerr.Wrap(err, agerr.CodeValidation,
				"redis: failed to parse connection URI")
		}
		// Apply pool settings from config to parsed options.
		opts.PoolSize = cfg.PoolSize
		opts.MinIdleConns = cfg.MinIdleConns
		opts.MaxRetries = cfg.MaxRetries
		if cfg.DialTimeout > 0 {
			opts.DialTimeout = cfg.DialTimeout
		}
		if cfg.ReadTimeout > 0 {
			opts.ReadTimeout = cfg.ReadTimeout
		}
		if cfg.WriteTimeout > 0 {
			opts.WriteTimeout = cfg.WriteTimeout
		}
	} else {
		opts = &redis.Options{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password:     cfg.Password.Value(),
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}
		if cfg.TLSEnabled {
			opts.TLSConfig = &tls.Config{
				MinVersion: tls.VersionTLS12,
			}
		}
	}

	rdb := redis.NewClient(opts)

	// Verify connectivity before returning the client.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, agerr.Wrap(err, agerr.CodeUnavailableDependency,
			"redis: failed to connect to server")
	}

	dbIndex := cfg.DB
	if cfg.URI != "" {
		dbIndex = opts.DB
	}

	return &Client{
		cmdable: rdb,
		config:  &cfg,
		tracer:  otel.Tracer(tracerName),
		dbIndex: dbIndex,
	}, nil
}

// NewFromClient creates a Client with a pre-existing [Cmdable]. This
// constructor is intended for testing with mock implementations.
//
// The cfg parameter is stored but not validated; pass nil for a
// zero-value config in tests.
func NewFromClient(cmdable Cmdable, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Client{
		cmdable: cmdable,
		config:  cfg,
		tracer:  otel.Tracer(tracerName),
		dbIndex: cfg.DB,
	}
}

// Set sets the string value of a key with an optional expiration, with
// OpenTelemetry tracing.
//
// All errors are wrapped as [*agerr.Error] with an appropriate code:
//   - [agerr.CodeTimeoutDatabase] if the context deadline is exceeded
//   - [agerr.CodeInternalDatabase] for all other Redis errors
func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	ctx, span := c.startSpan(ctx, "Set", fmt.Sprintf("SET %s", key))
	err := c.cmdable.Set(ctx, key, value, expiration).Err()
	finishSpan(span, err)
	if err != nil {
		return wrapError(err, "redis: set failed")
	}
	return nil
}

// Get returns the string value of a key, with OpenTelemetry tracing.
// Returns [redis.Nil] (through the wrapped error's cause) when the key
// does not exist:
//
//	val, err := client.Get(ctx, "session:abc")
//	if errors.Is(err, redis.Nil) {
//	    // cache miss
//	}
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	ctx, span := c.startSpan(ctx, "Get", fmt.Sprintf("GET %s", key))
	val, err := c.cmdable.Get(ctx, key).Result()
	finishSpan(span, err)
	if err != nil {
		return "", wrapError(err, "redis: get failed")
	}
	return val, nil
}

// Del deletes one or more keys and returns the number of keys that were
// removed, with OpenTelemetry tracing.
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	ctx, span := c.startSpan(ctx, "Del", fmt.Sprintf("DEL %v", keys))
	val, err := c.cmdable.Del(ctx, keys...).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: del failed")
	}
	return val, nil
}

// Exists returns the number of specified keys that exist, with
// OpenTelemetry tracing.
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	ctx, span := c.startSpan(ctx, "Exists", fmt.Sprintf("EXISTS %v", keys))
	val, err := c.cmdable.Exists(ctx, keys...).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: exists failed")
	}
	return val, nil
}

// Expire sets an expiration on a key and returns true if the timeout was
// set successfully, with OpenTelemetry tracing.
func (c *Client) Expire(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	ctx, span := c.startSpan(ctx, "Expire", fmt.Sprintf("EXPIRE %s %v", key, expiration))
	val, err := c.cmdable.Expire(ctx, key, expiration).Result()
	finishSpan(span, err)
	if err != nil {
		return false, wrapError(err, "redis: expire failed")
	}
	return val, nil
}

// TTL returns the remaining time to live of a key, with OpenTelemetry
// tracing. Returns -1 if the key exists but has no associated
// expiration, and -2 if the key does not exist.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, span := c.startSpan(ctx, "TTL", fmt.Sprintf("TTL %s", key))
	val, err := c.cmdable.TTL(ctx, key).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: ttl failed")
	}
	return val, nil
}

// RPush appends one or more values to a list stored at key and returns
// the length of the list after the push, with OpenTelemetry tracing.
// The session cache appends serialized messages in conversation order.
func (c *Client) RPush(ctx context.Context, key string, values ...interface{}) (int64, error) {
	ctx, span := c.startSpan(ctx, "RPush", fmt.Sprintf("RPUSH %s", key))
	val, err := c.cmdable.RPush(ctx, key, values...).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: rpush failed")
	}
	return val, nil
}

// LRange returns a range of elements from a list stored at key, with
// OpenTelemetry tracing. The offsets start and stop are zero-based
// indexes. Use 0 and -1 to get all elements.
func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	ctx, span := c.startSpan(ctx, "LRange", fmt.Sprintf("LRANGE %s %d %d", key, start, stop))
	val, err := c.cmdable.LRange(ctx, key, start, stop).Result()
	finishSpan(span, err)
	if err != nil {
		return nil, wrapError(err, "redis: lrange failed")
	}
	return val, nil
}

// LTrim trims a list stored at key to the specified range, with
// OpenTelemetry tracing. The session cache uses a negative start index
// to keep only the most recent messages:
//
//	// keep the last 50 entries
//	err := client.LTrim(ctx, "session:abc:recent", -50, -1)
func (c *Client) LTrim(ctx context.Context, key string, start, stop int64) error {
	ctx, span := c.startSpan(ctx, "LTrim", fmt.Sprintf("LTRIM %s %d %d", key, start, stop))
	err := c.cmdable.LTrim(ctx, key, start, stop).Err()
	finishSpan(span, err)
	if err != nil {
		return wrapError(err, "redis: ltrim failed")
	}
	return nil
}

// LLen returns the length of a list stored at key, with OpenTelemetry
// tracing.
func (c *Client) LLen(ctx context.Context, key string) (int64, error) {
	ctx, span := c.startSpan(ctx, "LLen", fmt.Sprintf("LLEN %s", key))
	val, err := c.cmdable.LLen(ctx, key).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: llen failed")
	}
	return val, nil
}

// Health verifies that the Redis connection is alive by executing a
// ping. It applies [DefaultHealthTimeout] if the provided context has no
// deadline.
//
// Returns nil if Redis is reachable, or a [*agerr.Error] with code
// [agerr.CodeUnavailableDependency] if the ping fails.
func (c *Client) Health(ctx context.Context) error {
	ctx, span := c.startSpan(ctx, "Health", "PING")

	// Apply a default timeout if the caller's context has no deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
		defer cancel()
	}

	err := c.cmdable.Ping(ctx).Err()
	finishSpan(span, err)
	if err != nil {
		return agerr.Wrap(err, agerr.CodeUnavailableDependency,
			"redis: health check failed")
	}
	return nil
}

// Close releases all connection resources. After Close is called, the
// client must not be used. Close is safe to call multiple times.
func (c *Client) Close() error {
	return c.cmdable.Close()
}

// Client returns the underlying [Cmdable] interface for advanced use
// cases not covered by the Client's methods.
//
// The returned Cmdable should not be closed directly; use [Client.Close]
// instead.
func (c *Client) Client() Cmdable {
	return c.cmdable
}

// startSpan creates a new OpenTelemetry span with standard database
// semantic attributes.
func (c *Client) startSpan(ctx context.Context, operationName, statement string) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, "redis."+operationName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.Int("db.redis.database_index", c.dbIndex),
		attribute.String("db.statement", truncateStatement(statement)),
	)
	return ctx, span
}

// finishSpan records an error on the span (if any) and ends it. If err
// is nil, the span status is set to OK.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// wrapError converts a Redis error to a [*agerr.Error] with an
// appropriate code.
//
// [context.DeadlineExceeded] is classified as [agerr.CodeTimeoutDatabase]
// (retryable). [context.Canceled] is classified as
// [agerr.CodeInternalDatabase] (not retryable) because cancellation
// indicates the caller abandoned the operation.
func wrapError(err error, message string) *agerr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return agerr.Wrap(err, agerr.CodeTimeoutDatabase, message)
	}
	return agerr.Wrap(err, agerr.CodeInternalDatabase, message)
}
