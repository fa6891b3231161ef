// Package auth provides token authentication and authorization primitives
// for AskGrid services.
//
// The package validates bearer JWTs issued by an external identity
// provider: signing keys are resolved from the provider's published key
// set (JWKS), signatures are verified against a strict algorithm
// allow-list, and claims are checked in a fixed order so a given bad
// token always fails the same way. Validated tokens map to an immutable
// [Identity] that downstream code consults through [Guard] checks.
//
// There is no package-level default authenticator. Services construct an
// [Authenticator] from a [Config] at startup and pass it explicitly to
// the HTTP middleware and gRPC interceptors.
//
// Failures are reported as typed [*agerr.Error] values. Authentication
// codes (AUTH_xxx) mean the caller was rejected; [agerr.CodeUnavailable]
// means the caller could not be validated because of infrastructure, and
// maps to HTTP 503 rather than 401.
package auth

import (
	"net/http"
	"strings"
	"time"

	agerr "github.com/askgrid/askgrid-core/pkg/errors"
)

// ---------------------------------------------------------------------------
// HTTPClient interface
// ---------------------------------------------------------------------------

// HTTPClient abstracts the HTTP client used for fetching the remote key
// set. Callers may provide a client with custom timeouts, transport
// settings, or middleware. The standard [http.Client] satisfies this
// interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config holds the configuration for an [Authenticator]. It is loaded
// once at startup and treated as immutable; a single Config may be
// shared by any number of goroutines.
type Config struct {
	// Issuer is the expected "iss" claim. Tokens carrying a different
	// issuer are rejected. Required.
	Issuer string `json:"issuer" yaml:"issuer" env:"AUTH_ISSUER" required:"true"`

	// Audience is the expected "aud" claim. The claim may be a single
	// string or an array; validation passes when the configured value
	// is present. If empty, the audience claim is not checked.
	Audience string `json:"audience,omitempty" yaml:"audience" env:"AUTH_AUDIENCE"`

	// AllowedAlgorithms is the signing algorithm allow-list. Tokens
	// declaring any other algorithm are rejected before key resolution.
	// "none" is never permitted. Defaults to RS256 and ES256.
	AllowedAlgorithms []string `json:"allowed_algorithms" yaml:"allowed_algorithms" env:"AUTH_ALLOWED_ALGORITHMS" envDefault:"RS256,ES256"`

	// KeySetURL is the JWKS endpoint of the identity provider. If
	// empty, every key resolution fails with [agerr.CodeUnavailable]
	// without touching the network.
	KeySetURL string `json:"key_set_url,omitempty" yaml:"key_set_url" env:"AUTH_KEY_SET_URL"`

	// KeySetCacheTTL is how long a fetched key set is served from cache
	// before being refreshed. Must be non-negative. Defaults to 1 hour.
	KeySetCacheTTL time.Duration `json:"key_set_cache_ttl" yaml:"key_set_cache_ttl" env:"AUTH_KEY_SET_CACHE_TTL" envDefault:"1h"`

	// TokenCacheTTL caps how long a validated identity is cached before
	// the token must be re-validated. The effective TTL per token is
	// the minimum of this value and the token's remaining lifetime.
	// Must be non-negative. Defaults to 5 minutes.
	TokenCacheTTL time.Duration `json:"token_cache_ttl" yaml:"token_cache_ttl" env:"AUTH_TOKEN_CACHE_TTL" envDefault:"5m"`

	// TokenCacheMaxSize is the maximum number of entries in the token
	// cache. Must be greater than zero. Defaults to 10000.
	TokenCacheMaxSize int `json:"token_cache_max_size" yaml:"token_cache_max_size" env:"AUTH_TOKEN_CACHE_MAX_SIZE" envDefault:"10000"`

	// ClockSkew is the tolerated clock difference between this service
	// and the token issuer when checking expiry. Must be non-negative.
	// Defaults to 30 seconds.
	ClockSkew time.Duration `json:"clock_skew" yaml:"clock_skew" env:"AUTH_CLOCK_SKEW" envDefault:"30s"`

	// HTTPClient fetches the remote key set. If nil, a default
	// [http.Client] with a 10-second timeout is used.
	HTTPClient HTTPClient `json:"-" yaml:"-"`
}

// maxTokenSize is the maximum accepted size for a token string (8 KB).
// Larger tokens are rejected to prevent resource exhaustion.
const maxTokenSize = 8192

// DefaultConfig returns a Config with the package defaults. Issuer,
// Audience, and KeySetURL are deployment-specific and left empty.
func DefaultConfig() Config {
	return Config{
		AllowedAlgorithms: []string{"RS256", "ES256"},
		KeySetCacheTTL:    1 * time.Hour,
		TokenCacheTTL:     5 * time.Minute,
		TokenCacheMaxSize: 10000,
		ClockSkew:         30 * time.Second,
	}
}

// Validate checks the configuration and returns a *[agerr.Error] with
// code [agerr.CodeValidation] if any field is invalid.
//
// Validation rules:
//   - Issuer must not be empty
//   - AllowedAlgorithms must not be empty and must not contain "none"
//   - KeySetCacheTTL, TokenCacheTTL, and ClockSkew must be non-negative
//   - TokenCacheMaxSize must be greater than zero
func (c *Config) Validate() *agerr.Error {
	if c.Issuer == "" {
		return agerr.New(agerr.CodeValidation, "auth: issuer must not be empty")
	}

	if len(c.AllowedAlgorithms) == 0 {
		return agerr.New(agerr.CodeValidation, "auth: algorithm allow-list must not be empty")
	}
	for _, alg := range c.AllowedAlgorithms {
		if strings.EqualFold(alg, "none") {
			return agerr.New(agerr.CodeValidation, "auth: algorithm 'none' must not be allowed")
		}
	}

	if c.KeySetCacheTTL < 0 {
		return agerr.New(agerr.CodeValidation, "auth: key set cache TTL must be non-negative")
	}

	if c.TokenCacheTTL < 0 {
		return agerr.New(agerr.CodeValidation, "auth: token cache TTL must be non-negative")
	}

	if c.ClockSkew < 0 {
		return agerr.New(agerr.CodeValidation, "auth: clock skew must be non-negative")
	}

	if c.TokenCacheMaxSize <= 0 {
		return agerr.New(agerr.CodeValidation, "auth: token cache max size must be greater than zero")
	}

	return nil
}
