package auth

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agerr "github.com/askgrid/askgrid-core/pkg/errors"
)

func TestKeySetResolver_NoEndpointConfigured(t *testing.T) {
	t.Parallel()
	cfg := testConfig("")
	r := NewKeySetResolver(&cfg)

	_, err := r.Resolve(context.Background(), "any-kid")
	require.Error(t, err)
	assert.True(t, agerr.HasCode(err, agerr.CodeUnavailable),
		"unconfigured endpoint is an infrastructure failure, not a caller rejection")
}

func TestKeySetResolver_EmptyKid(t *testing.T) {
	t.Parallel()
	fixture := newJWKSFixture(t)
	cfg := testConfig(fixture.URL())
	r := NewKeySetResolver(&cfg)

	_, err := r.Resolve(context.Background(), "")
	require.Error(t, err)
	assert.True(t, agerr.HasCode(err, agerr.CodeAuthenticationUnknownKey))
	assert.Zero(t, fixture.Hits(), "empty kid should not reach the network")
}

func TestKeySetResolver_ResolvesRSAAndEC(t *testing.T) {
	t.Parallel()
	rsaKey := testRSAKey(t)
	ecKey := testECKey(t)
	fixture := newJWKSFixture(t)
	fixture.AddRSA("rsa-kid", &rsaKey.PublicKey)
	fixture.AddEC("ec-kid", &ecKey.PublicKey)

	cfg := testConfig(fixture.URL())
	r := NewKeySetResolver(&cfg)

	rsaPub, err := r.Resolve(context.Background(), "rsa-kid")
	require.NoError(t, err)
	require.NotNil(t, rsaPub)

	ecPub, err := r.Resolve(context.Background(), "ec-kid")
	require.NoError(t, err)
	require.NotNil(t, ecPub)

	assert.Equal(t, int64(1), fixture.Hits(),
		"both kids should be served by the single fetched key set")
}

func TestKeySetResolver_CacheHit_NoRefetch(t *testing.T) {
	t.Parallel()
	rsaKey := testRSAKey(t)
	fixture := newJWKSFixture(t)
	fixture.AddRSA("kid-1", &rsaKey.PublicKey)

	cfg := testConfig(fixture.URL())
	r := NewKeySetResolver(&cfg)

	for range 5 {
		_, err := r.Resolve(context.Background(), "kid-1")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), fixture.Hits())
}

func TestKeySetResolver_TTLExpiry_Refetches(t *testing.T) {
	t.Parallel()
	rsaKey := testRSAKey(t)
	fixture := newJWKSFixture(t)
	fixture.AddRSA("kid-1", &rsaKey.PublicKey)

	cfg := testConfig(fixture.URL())
	cfg.KeySetCacheTTL = 1 * time.Millisecond
	r := NewKeySetResolver(&cfg)

	_, err := r.Resolve(context.Background(), "kid-1")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = r.Resolve(context.Background(), "kid-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), fixture.Hits())
}

func TestKeySetResolver_UnknownKid(t *testing.T) {
	t.Parallel()
	rsaKey := testRSAKey(t)
	fixture := newJWKSFixture(t)
	fixture.AddRSA("kid-1", &rsaKey.PublicKey)

	cfg := testConfig(fixture.URL())
	r := NewKeySetResolver(&cfg)

	_, err := r.Resolve(context.Background(), "no-such-kid")
	require.Error(t, err)
	assert.True(t, agerr.HasCode(err, agerr.CodeAuthenticationUnknownKey))
}

func TestKeySetResolver_KeyRotation_RefetchesOnUnknownKid(t *testing.T) {
	t.Parallel()
	oldKey := testRSAKey(t)
	newKey := testRSAKey(t)

	fixture := newJWKSFixture(t)
	fixture.AddRSA("old-kid", &oldKey.PublicKey)

	cfg := testConfig(fixture.URL())
	r := NewKeySetResolver(&cfg)

	_, err := r.Resolve(context.Background(), "old-kid")
	require.NoError(t, err)

	// Rotate: the provider replaces its key set.
	fixture.SetKeys(nil)
	fixture.AddRSA("new-kid", &newKey.PublicKey)

	// The cache is still fresh, but the unknown kid forces a refetch.
	pub, err := r.Resolve(context.Background(), "new-kid")
	require.NoError(t, err)
	require.NotNil(t, pub)
	assert.Equal(t, int64(2), fixture.Hits())
}

func TestKeySetResolver_FetchFailure(t *testing.T) {
	t.Parallel()
	fixture := newJWKSFixture(t)
	fixture.SetStatus(http.StatusInternalServerError)

	cfg := testConfig(fixture.URL())
	r := NewKeySetResolver(&cfg)

	_, err := r.Resolve(context.Background(), "kid-1")
	require.Error(t, err)
	assert.True(t, agerr.HasCode(err, agerr.CodeAuthenticationUnknownKey))
	assert.Equal(t, int64(1), fixture.Hits(), "a failed fetch is not retried internally")
}

func TestKeySetResolver_MalformedKeysSkipped(t *testing.T) {
	t.Parallel()
	rsaKey := testRSAKey(t)

	fixture := newJWKSFixture(t)
	fixture.SetKeys([]map[string]string{
		{"kty": "RSA", "kid": "broken", "n": "!!!not-base64url!!!", "e": "AQAB"},
		{"kty": "OKP", "kid": "unsupported", "crv": "Ed25519"},
		{"kty": "RSA", "n": "AQAB", "e": "AQAB"}, // no kid
	})
	fixture.AddRSA("good-kid", &rsaKey.PublicKey)

	cfg := testConfig(fixture.URL())
	r := NewKeySetResolver(&cfg)

	// The good key is usable despite its broken neighbors.
	pub, err := r.Resolve(context.Background(), "good-kid")
	require.NoError(t, err)
	require.NotNil(t, pub)

	_, err = r.Resolve(context.Background(), "broken")
	require.Error(t, err)
	assert.True(t, agerr.HasCode(err, agerr.CodeAuthenticationUnknownKey))
}

// TestKeySetResolver_ConcurrentMisses_SingleFetch is the single-flight
// property: many goroutines resolving the same unseen kid at once
// trigger exactly one key set fetch, and every one of them observes the
// key from that fetch.
func TestKeySetResolver_ConcurrentMisses_SingleFetch(t *testing.T) {
	t.Parallel()
	rsaKey := testRSAKey(t)
	fixture := newJWKSFixture(t)
	fixture.AddRSA("shared-kid", &rsaKey.PublicKey)

	cfg := testConfig(fixture.URL())
	r := NewKeySetResolver(&cfg)

	const goroutines = 32
	var wg sync.WaitGroup
	errs := make([]error, goroutines)

	start := make(chan struct{})
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = r.Resolve(context.Background(), "shared-kid")
		}()
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "goroutine %d", i)
	}
	assert.Equal(t, int64(1), fixture.Hits(),
		"concurrent misses for the same kid must coalesce into one fetch")
}

func TestParseRSAPublicKey_InvalidEncoding(t *testing.T) {
	t.Parallel()
	_, err := parseRSAPublicKey("not base64url!", "AQAB")
	assert.Error(t, err)
}

func TestParseECPublicKey_UnsupportedCurve(t *testing.T) {
	t.Parallel()
	_, err := parseECPublicKey("P-128", "AA", "AA")
	assert.Error(t, err)
}
