package auth

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	agerr "github.com/askgrid/askgrid-core/pkg/errors"
)

// ---------------------------------------------------------------------------
// KeySetResolver — fetches and caches the provider's signing keys
// ---------------------------------------------------------------------------

// KeySetResolver resolves token signing keys by key ID (kid) from a
// remote JWKS endpoint. Fetched key sets are cached for the configured
// TTL; a cache miss (including an unknown kid on a fresh cache, which
// signals key rotation) triggers a refetch of the full set.
//
// Concurrent misses coalesce: no matter how many goroutines ask for an
// unseen kid at once, at most one fetch is in flight, and all waiters
// share its result. Lookups for already-cached kids take a read lock
// only and are never blocked by an in-flight refresh.
//
// KeySetResolver is safe for concurrent use by multiple goroutines.
type KeySetResolver struct {
	url    string
	ttl    time.Duration
	client HTTPClient

	mu        sync.RWMutex
	keys      map[string]crypto.PublicKey
	fetchedAt time.Time

	flight singleflight.Group
}

// NewKeySetResolver creates a resolver for the key set endpoint in cfg.
// If cfg.HTTPClient is nil, a default [http.Client] with a 10-second
// timeout is used.
func NewKeySetResolver(cfg *Config) *KeySetResolver {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &KeySetResolver{
		url:    cfg.KeySetURL,
		ttl:    cfg.KeySetCacheTTL,
		client: client,
	}
}

// Resolve returns the public key for the given key ID.
//
// When no key set endpoint is configured, Resolve fails immediately
// with [agerr.CodeUnavailable] and never touches the network: that is
// an infrastructure problem, not a caller rejection. A fetch failure or
// a kid missing from a freshly fetched set yields
// [agerr.CodeAuthenticationUnknownKey]. Resolve never retries a failed
// fetch internally.
func (r *KeySetResolver) Resolve(ctx context.Context, kid string) (crypto.PublicKey, error) {
	if r.url == "" {
		return nil, agerr.New(agerr.CodeUnavailable,
			"auth: key set endpoint is not configured")
	}
	if kid == "" {
		return nil, agerr.New(agerr.CodeAuthenticationUnknownKey,
			"auth: token has no key id")
	}

	r.mu.RLock()
	fresh := !r.fetchedAt.IsZero() && time.Since(r.fetchedAt) < r.ttl
	key, found := r.keys[kid]
	r.mu.RUnlock()
	if fresh && found {
		return key, nil
	}

	// Stale cache, or fresh cache without this kid (key rotation):
	// refetch the full set. Concurrent callers share one fetch.
	_, err, _ := r.flight.Do("fetch", func() (any, error) {
		keys, err := r.fetch(ctx)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.keys = keys
		r.fetchedAt = time.Now()
		r.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return nil, agerr.Wrap(err, agerr.CodeAuthenticationUnknownKey,
			"auth: key set fetch failed")
	}

	r.mu.RLock()
	key, found = r.keys[kid]
	r.mu.RUnlock()
	if !found {
		return nil, agerr.Newf(agerr.CodeAuthenticationUnknownKey,
			"auth: key id %q not found in key set", kid)
	}
	return key, nil
}

// jwksDocument is the JSON structure of a JWKS endpoint response.
type jwksDocument struct {
	Keys []jwkEntry `json:"keys"`
}

// jwkEntry is a single key in a JWKS response, limited to the fields
// needed to reconstruct RSA and EC public keys.
type jwkEntry struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	// RSA fields
	N string `json:"n"`
	E string `json:"e"`
	// EC fields
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// fetch GETs the key set endpoint and builds a kid-to-key map. The
// response body is limited to 1 MB. Individual keys that are malformed
// or of an unsupported type are skipped; the rest of the set remains
// usable.
func (r *KeySetResolver) fetch(ctx context.Context) (map[string]crypto.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to create key set request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: key set request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: key set endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("auth: failed to read key set response: %w", err)
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("auth: failed to parse key set JSON: %w", err)
	}

	keys := make(map[string]crypto.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kid == "" {
			continue
		}
		switch k.Kty {
		case "RSA":
			pub, err := parseRSAPublicKey(k.N, k.E)
			if err != nil {
				continue
			}
			keys[k.Kid] = pub
		case "EC":
			pub, err := parseECPublicKey(k.Crv, k.X, k.Y)
			if err != nil {
				continue
			}
			keys[k.Kid] = pub
		}
	}
	return keys, nil
}

// parseRSAPublicKey builds an *rsa.PublicKey from base64url-encoded
// modulus (n) and exponent (e) values.
func parseRSAPublicKey(nB64, eB64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode RSA modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode RSA exponent: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

// parseECPublicKey builds an *ecdsa.PublicKey from a curve name and
// base64url-encoded x and y coordinates.
func parseECPublicKey(crv, xB64, yB64 string) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("auth: unsupported EC curve %q", crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(xB64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode EC x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(yB64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode EC y coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
