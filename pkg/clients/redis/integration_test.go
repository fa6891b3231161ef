//go:build integration

// Package redis_test contains integration tests for the Redis client that
// require a running Redis instance via testcontainers-go. These tests are
// gated behind the "integration" build tag and are executed in CI with Docker.
//
// Run locally with:
//
//	go test -v -race -tags=integration ./pkg/clients/redis/...
//
// # Architecture
//
// All tests run within a single [suite.Suite] that starts one Redis
// container in [SetupSuite] and terminates it in [TearDownSuite]. Test
// isolation is achieved via unique key prefixes per test method rather than
// per-test containers, which reduces total execution time.
package redis_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/askgrid/askgrid-core/internal/testutil/containers"
	"github.com/askgrid/askgrid-core/pkg/clients/redis"
	agerr "github.com/askgrid/askgrid-core/pkg/errors"
)

// ===========================================================================
// Suite Definition
// ===========================================================================

// RedisIntegrationSuite runs all Redis integration tests against a single
// shared container. The container is started once in SetupSuite and
// terminated in TearDownSuite. All test methods share the same client,
// using unique key prefixes for isolation.
type RedisIntegrationSuite struct {
	suite.Suite

	// ctx is the background context used for container and client
	// lifecycle operations.
	ctx context.Context

	// redisResult holds the started Redis container and connection
	// string. It is set in SetupSuite and used to terminate the
	// container in TearDownSuite.
	redisResult *containers.RedisResult

	// client is the Redis client connected to the test container. All
	// test methods use this client unless they need to test client
	// creation or close behavior.
	client *redis.Client

	// connString is the Redis connection URI for the test container.
	// Tests that need to create additional clients use this to connect
	// to the same instance.
	connString string
}

// SetupSuite starts a single Redis container and creates a client shared
// across all tests in the suite. This runs once before any test method
// executes.
func (s *RedisIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	result, err := containers.StartRedis(s.ctx)
	require.NoError(s.T(), err, "failed to start Redis container")
	s.redisResult = result
	s.connString = result.ConnString

	cfg := redis.Config{
		URI:      result.ConnString,
		PoolSize: 10,
	}
	require.NoError(s.T(), cfg.Validate(), "failed to validate config")

	client, err := redis.NewClient(s.ctx, cfg)
	require.NoError(s.T(), err, "failed to create Redis client")
	s.client = client
}

// TearDownSuite closes the client and terminates the container. This
// runs once after all test methods have completed.
func (s *RedisIntegrationSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.redisResult != nil {
		if err := s.redisResult.Container.Terminate(s.ctx); err != nil {
			s.T().Logf("failed to terminate redis container: %v", err)
		}
	}
}

// TestRedisIntegration is the top-level entry point that runs all suite
// tests. It is skipped in short mode (-short flag) to allow fast unit
// test runs without Docker.
func TestRedisIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisIntegrationSuite))
}

// ===========================================================================
// Connection Tests
// ===========================================================================

// TestNewClient_ConnectsSuccessfully verifies that NewClient can
// establish a connection to a real Redis instance and that the returned
// client is functional.
func (s *RedisIntegrationSuite) TestNewClient_ConnectsSuccessfully() {
	require.NotNil(s.T(), s.client, "suite client should not be nil")
}

// TestHealth_ReturnsNil verifies that Health returns nil when Redis
// is reachable and responding to pings.
func (s *RedisIntegrationSuite) TestHealth_ReturnsNil() {
	err := s.client.Health(s.ctx)
	require.NoError(s.T(), err, "Health() should succeed when Redis is reachable")
}

// ===========================================================================
// String Operation Tests
// ===========================================================================

// TestSet_And_Get verifies that Set stores a value and Get retrieves it.
func (s *RedisIntegrationSuite) TestSet_And_Get() {
	key := "test:set_get:session:alpha:summary"
	err := s.client.Set(s.ctx, key, "discussed invoice processing", 10*time.Minute)
	require.NoError(s.T(), err, "Set should succeed")

	val, err := s.client.Get(s.ctx, key)
	require.NoError(s.T(), err, "Get should succeed")
	assert.Equal(s.T(), "discussed invoice processing", val)
}

// TestGet_Miss verifies that Get on a key that does not exist returns a
// wrapped error through which callers can still detect the cache miss
// via [goredis.Nil].
func (s *RedisIntegrationSuite) TestGet_Miss() {
	_, err := s.client.Get(s.ctx, "test:get_miss:session:none:summary")
	require.Error(s.T(), err, "Get on nonexistent key should return an error")

	var agErr *agerr.Error
	require.True(s.T(), errors.As(err, &agErr),
		"miss should be wrapped as a platform error")
	assert.True(s.T(), errors.Is(err, goredis.Nil),
		"cache miss should be detectable through the wrapped error")
}

// TestDel_RemovesKey verifies that Del removes a key and returns the
// number of keys removed.
func (s *RedisIntegrationSuite) TestDel_RemovesKey() {
	key := "test:del:session:beta:summary"
	err := s.client.Set(s.ctx, key, "temp", 10*time.Minute)
	require.NoError(s.T(), err)

	deleted, err := s.client.Del(s.ctx, key)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), deleted)

	// Verify the key is gone.
	_, err = s.client.Get(s.ctx, key)
	require.Error(s.T(), err, "Get after Del should fail")
}

// TestExists_ReturnsCount verifies that Exists returns the correct
// count of existing keys.
func (s *RedisIntegrationSuite) TestExists_ReturnsCount() {
	key1 := "test:exists:session:a:summary"
	key2 := "test:exists:session:b:summary"
	err := s.client.Set(s.ctx, key1, "a", 10*time.Minute)
	require.NoError(s.T(), err)
	err = s.client.Set(s.ctx, key2, "b", 10*time.Minute)
	require.NoError(s.T(), err)

	count, err := s.client.Exists(s.ctx, key1, key2, "test:exists:nonexistent")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(2), count)
}

// TestExpire_And_TTL verifies that Expire sets a TTL and TTL retrieves
// a positive duration.
func (s *RedisIntegrationSuite) TestExpire_And_TTL() {
	key := "test:expire:session:gamma:recent"
	_, err := s.client.RPush(s.ctx, key, "hello")
	require.NoError(s.T(), err)

	ok, err := s.client.Expire(s.ctx, key, 30*time.Second)
	require.NoError(s.T(), err)
	assert.True(s.T(), ok, "Expire should return true for existing key")

	ttl, err := s.client.TTL(s.ctx, key)
	require.NoError(s.T(), err)
	assert.True(s.T(), ttl > 0, "TTL should be positive, got %v", ttl)
	assert.True(s.T(), ttl <= 30*time.Second, "TTL should be <= 30s, got %v", ttl)
}

// ===========================================================================
// Recent-History List Tests
// ===========================================================================

// TestRPush_And_LRange verifies that RPush appends messages in order and
// LRange retrieves them oldest-first, which is the access pattern for a
// session's recent-history window.
func (s *RedisIntegrationSuite) TestRPush_And_LRange() {
	key := "test:list:session:delta:recent"
	_, err := s.client.RPush(s.ctx, key, "q1", "a1", "q2")
	require.NoError(s.T(), err)

	items, err := s.client.LRange(s.ctx, key, 0, -1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"q1", "a1", "q2"}, items)
}

// TestLTrim_CapsHistory verifies that LTrim with a negative start index
// keeps only the most recent entries, dropping the oldest. This is how
// the session cache bounds each conversation's recent-history window.
func (s *RedisIntegrationSuite) TestLTrim_CapsHistory() {
	key := "test:list:session:epsilon:recent"
	for i := 0; i < 10; i++ {
		_, err := s.client.RPush(s.ctx, key, fmt.Sprintf("msg-%d", i))
		require.NoError(s.T(), err)
	}

	err := s.client.LTrim(s.ctx, key, -4, -1)
	require.NoError(s.T(), err)

	items, err := s.client.LRange(s.ctx, key, 0, -1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"msg-6", "msg-7", "msg-8", "msg-9"}, items,
		"LTrim should keep only the newest entries")

	length, err := s.client.LLen(s.ctx, key)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(4), length)
}

// TestLLen_EmptyList verifies that LLen returns zero for a key that
// does not exist.
func (s *RedisIntegrationSuite) TestLLen_EmptyList() {
	length, err := s.client.LLen(s.ctx, "test:list:session:empty:recent")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(0), length)
}

// ===========================================================================
// Error Code Classification Tests
// ===========================================================================

// TestErrorCode_TimeoutClassification verifies that a real command
// timeout produces the correct platform error classification.
func (s *RedisIntegrationSuite) TestErrorCode_TimeoutClassification() {
	ctx, cancel := context.WithTimeout(s.ctx, 1*time.Nanosecond)
	defer cancel()
	// Allow the timeout to take effect.
	time.Sleep(1 * time.Millisecond)

	err := s.client.Set(ctx, "test:timeout_class:key1", "value", 0)
	require.Error(s.T(), err)

	assert.True(s.T(), agerr.IsTimeout(err),
		"expected IsTimeout()=true for deadline exceeded error")
	assert.True(s.T(), agerr.IsRetryable(err),
		"expected IsRetryable()=true for timeout error")
}

// ===========================================================================
// Close Tests
// ===========================================================================

// TestClose_ReleasesResources verifies that after Close is called,
// further operations fail. This test creates its own client so it can
// close it without affecting other tests in the suite.
func (s *RedisIntegrationSuite) TestClose_ReleasesResources() {
	cfg := redis.Config{
		URI:      s.connString,
		PoolSize: 5,
	}
	require.NoError(s.T(), cfg.Validate())

	client, err := redis.NewClient(s.ctx, cfg)
	require.NoError(s.T(), err)

	// Verify the client works before closing.
	require.NoError(s.T(), client.Health(s.ctx),
		"Health() should succeed before Close()")

	err = client.Close()
	require.NoError(s.T(), err)

	// After Close, Health should fail because the connection is closed.
	assert.Error(s.T(), client.Health(s.ctx),
		"Health() should fail after Close()")
}

// ===========================================================================
// Concurrency Tests
// ===========================================================================

// TestConcurrentOperations verifies that the client can handle
// concurrent operations from multiple goroutines, validating that the
// connection pool and client are safe for concurrent use.
func (s *RedisIntegrationSuite) TestConcurrentOperations() {
	const numWorkers = 10
	var wg sync.WaitGroup
	errs := make(chan error, numWorkers)

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("test:concurrent:session:%d:recent", n)
			if _, pushErr := s.client.RPush(s.ctx, key, fmt.Sprintf("msg-%d", n)); pushErr != nil {
				errs <- pushErr
				return
			}
			if _, rangeErr := s.client.LRange(s.ctx, key, 0, -1); rangeErr != nil {
				errs <- rangeErr
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(s.T(), err,
			"concurrent operation should not produce errors")
	}
}

// ===========================================================================
// Client Accessor Tests
// ===========================================================================

// TestClientAccessor verifies that client.Client() returns a functional
// Cmdable that can execute operations directly, bypassing the client's
// tracing and error wrapping layer.
func (s *RedisIntegrationSuite) TestClientAccessor() {
	cmdable := s.client.Client()
	require.NotNil(s.T(), cmdable, "Client() should return non-nil")

	// Use the cmdable directly to ping Redis.
	err := cmdable.Ping(s.ctx).Err()
	require.NoError(s.T(), err, "direct cmdable Ping should succeed")
}
