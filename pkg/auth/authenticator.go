package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	agerr "github.com/askgrid/askgrid-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope for auth spans.
const tracerName = "github.com/askgrid/askgrid-core/pkg/auth"

// MethodBearerJWT is the authentication method recorded in a [Context]
// built from a validated bearer JWT.
const MethodBearerJWT = "bearer-jwt"

// ---------------------------------------------------------------------------
// Context — the result of an authentication attempt
// ---------------------------------------------------------------------------

// Context describes the outcome of an authentication attempt: either an
// authenticated caller with the method that authenticated them, or an
// anonymous caller with neither. There is no partially-trusted state; a
// Context carrying an identity always carries a method, and an
// anonymous Context carries nothing.
//
// The zero value is anonymous.
type Context struct {
	identity *Identity
	method   string
}

// Authenticated returns a Context for a validated identity. A nil
// identity yields the anonymous Context, preserving the invariant that
// authenticated contexts always carry a caller.
func Authenticated(identity *Identity) Context {
	if identity == nil {
		return Anonymous()
	}
	return Context{identity: identity, method: MethodBearerJWT}
}

// Anonymous returns the Context for an unauthenticated caller.
func Anonymous() Context {
	return Context{}
}

// IsAuthenticated reports whether the Context carries an identity.
func (c Context) IsAuthenticated() bool {
	return c.identity != nil
}

// Identity returns the authenticated caller, or nil for an anonymous
// Context.
func (c Context) Identity() *Identity {
	return c.identity
}

// Method returns the authentication method ("bearer-jwt"), or "" for an
// anonymous Context.
func (c Context) Method() string {
	return c.method
}

// ---------------------------------------------------------------------------
// tokenCache — validated identities keyed by token hash
// ---------------------------------------------------------------------------

// tokenCacheEntry stores a cached identity and its expiration time.
type tokenCacheEntry struct {
	identity  *Identity
	expiresAt time.Time
}

// tokenCache caches validated identities keyed by the SHA-256 hash of
// the token string, so repeated requests with the same token skip
// signature verification. Raw tokens are never stored.
type tokenCache struct {
	mu      sync.RWMutex
	entries map[string]*tokenCacheEntry
	maxSize int
	ttl     time.Duration
}

func newTokenCache(ttl time.Duration, maxSize int) *tokenCache {
	return &tokenCache{
		entries: make(map[string]*tokenCacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// get returns the cached identity for the token hash, if present and
// not expired.
func (c *tokenCache) get(tokenHash string) (*Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[tokenHash]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.identity, true
}

// put stores a validated identity. The effective TTL is the minimum of
// the configured TTL and the token's remaining lifetime; an already
// expired token is not cached. At capacity, expired entries are evicted
// first, then the entry closest to expiry.
func (c *tokenCache) put(tokenHash string, identity *Identity, tokenExp time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ttl := c.ttl
	if remaining := time.Until(tokenExp); remaining > 0 && remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictExpiredLocked()
	}
	if len(c.entries) >= c.maxSize {
		var oldestKey string
		var oldestTime time.Time
		first := true
		for k, v := range c.entries {
			if first || v.expiresAt.Before(oldestTime) {
				oldestKey = k
				oldestTime = v.expiresAt
				first = false
			}
		}
		if oldestKey != "" {
			delete(c.entries, oldestKey)
		}
	}

	c.entries[tokenHash] = &tokenCacheEntry{
		identity:  identity,
		expiresAt: time.Now().Add(ttl),
	}
}

// evictExpiredLocked removes all expired entries. Caller must hold the
// write lock.
func (c *tokenCache) evictExpiredLocked() {
	now := time.Now()
	for k, v := range c.entries {
		if now.After(v.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// ---------------------------------------------------------------------------
// Authenticator
// ---------------------------------------------------------------------------

// Authenticator turns bearer tokens into identities. It owns the key
// set resolver, the verifier, and the token cache, and is constructed
// once per process from a validated [Config]; there is no package-level
// instance.
//
// Authenticator is safe for concurrent use by multiple goroutines.
type Authenticator struct {
	cfg      Config
	resolver *KeySetResolver
	verifier *Verifier
	cache    *tokenCache
	tracer   trace.Tracer
}

// NewAuthenticator creates an Authenticator from the given
// configuration. Zero-valued AllowedAlgorithms fall back to the package
// default (RS256, ES256) before validation; an invalid configuration is
// returned as an error.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if len(cfg.AllowedAlgorithms) == 0 {
		cfg.AllowedAlgorithms = DefaultConfig().AllowedAlgorithms
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Authenticator{
		cfg:    cfg,
		cache:  newTokenCache(cfg.TokenCacheTTL, cfg.TokenCacheMaxSize),
		tracer: otel.Tracer(tracerName),
	}
	a.resolver = NewKeySetResolver(&a.cfg)
	a.verifier = NewVerifier(&a.cfg, a.resolver)
	return a, nil
}

// Authenticate validates a bearer token and returns the caller's
// identity. The pipeline is strictly linear: structural and signature
// verification, then ordered claims validation, then identity mapping.
// The first failure is terminal; a token is never retried with a
// different key.
//
// Validated identities are cached by token hash for the configured TTL,
// capped by the token's remaining lifetime.
func (a *Authenticator) Authenticate(ctx context.Context, tokenStr string) (*Identity, error) {
	ctx, span := a.tracer.Start(ctx, "auth.Authenticate")
	defer span.End()

	if tokenStr == "" {
		err := agerr.New(agerr.CodeAuthentication, "auth: token must not be empty")
		finishSpan(span, err)
		return nil, err
	}
	if len(tokenStr) > maxTokenSize {
		err := agerr.New(agerr.CodeAuthenticationMalformed, "auth: token exceeds maximum size")
		finishSpan(span, err)
		return nil, err
	}

	hash := tokenHash(tokenStr)
	if identity, ok := a.cache.get(hash); ok {
		span.SetAttributes(attribute.Bool("auth.cache_hit", true))
		return identity, nil
	}
	span.SetAttributes(attribute.Bool("auth.cache_hit", false))

	claims, err := a.verifier.Verify(ctx, tokenStr)
	if err != nil {
		finishSpan(span, err)
		return nil, err
	}

	if err := CheckClaims(claims, time.Now(), &a.cfg); err != nil {
		finishSpan(span, err)
		return nil, err
	}

	identity := mapIdentity(claims)
	if identity.Subject() == "" {
		err := agerr.New(agerr.CodeAuthenticationMalformed, "auth: token has no subject")
		finishSpan(span, err)
		return nil, err
	}

	if exp, ok := claims.ExpiresAt(); ok {
		a.cache.put(hash, identity, exp)
	}

	span.SetAttributes(attribute.String("auth.subject", identity.Subject()))
	return identity, nil
}

// AuthenticateOptional validates a token if one is present, swallowing
// failures: an empty token and an invalid token both produce the
// anonymous [Context]. This is the only boundary where authentication
// failures are absorbed rather than reported; use it for endpoints that
// serve both anonymous and signed-in callers.
func (a *Authenticator) AuthenticateOptional(ctx context.Context, tokenStr string) Context {
	if tokenStr == "" {
		return Anonymous()
	}

	identity, err := a.Authenticate(ctx, tokenStr)
	if err != nil {
		slog.DebugContext(ctx, "auth: optional authentication failed, proceeding anonymously",
			"code", agerr.GetCode(err),
		)
		return Anonymous()
	}
	return Authenticated(identity)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// tokenHash computes the SHA-256 hash of a token string, hex-encoded,
// used as the token cache key.
func tokenHash(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// finishSpan records err on the span and marks the span status as
// Error. A nil err is a no-op.
func finishSpan(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
