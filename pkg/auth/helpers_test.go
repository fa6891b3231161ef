package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Shared test fixtures
// ---------------------------------------------------------------------------

const (
	testIssuer   = "https://id.askgrid.test"
	testAudience = "askgrid-api"
)

// testRSAKey generates a 2048-bit RSA key pair for signing test tokens.
func testRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "failed to generate RSA key")
	return key
}

// testECKey generates a P-256 ECDSA key pair for signing test tokens.
func testECKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err, "failed to generate ECDSA key")
	return key
}

// signRS256 creates an RS256-signed JWT with the given kid and claims.
func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	require.NoError(t, err, "failed to sign RS256 token")
	return signed
}

// signES256 creates an ES256-signed JWT with the given kid and claims.
func signES256(t *testing.T, key *ecdsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	require.NoError(t, err, "failed to sign ES256 token")
	return signed
}

// signHS256 creates an HS256-signed JWT. HS256 is outside the default
// allow-list, so these tokens exercise the algorithm rejection path.
func signHS256(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err, "failed to sign HS256 token")
	return signed
}

// validClaims returns a claim set that passes CheckClaims against
// testConfig and maps to a fully populated identity.
func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":                testIssuer,
		"aud":                testAudience,
		"sub":                "user-123",
		"exp":                jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
		"iat":                jwt.NewNumericDate(time.Now()),
		"email":              "ada@example.com",
		"name":               "Ada Lovelace",
		"preferred_username": "ada",
		"roles":              []string{"member", "analyst"},
		"groups":             []string{"research"},
		"scope":              "chat:ask chat:history",
	}
}

// jwksFixture is an httptest JWKS endpoint with a mutable key set and a
// request counter, for cache and single-flight assertions.
type jwksFixture struct {
	srv  *httptest.Server
	hits atomic.Int64

	mu     sync.Mutex
	keys   []map[string]string
	status int
}

// newJWKSFixture starts a JWKS server with no keys. The server is shut
// down via t.Cleanup.
func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()
	f := &jwksFixture{status: http.StatusOK}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		f.mu.Lock()
		status := f.status
		doc, _ := json.Marshal(map[string]any{"keys": f.keys})
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(doc)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

// AddRSA publishes an RSA public key under the given kid.
func (f *jwksFixture) AddRSA(kid string, pub *rsa.PublicKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, map[string]string{
		"kty": "RSA",
		"kid": kid,
		"alg": "RS256",
		"use": "sig",
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	})
}

// AddEC publishes a P-256 public key under the given kid.
func (f *jwksFixture) AddEC(kid string, pub *ecdsa.PublicKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, map[string]string{
		"kty": "EC",
		"kid": kid,
		"crv": "P-256",
		"use": "sig",
		"x":   base64.RawURLEncoding.EncodeToString(pub.X.Bytes()),
		"y":   base64.RawURLEncoding.EncodeToString(pub.Y.Bytes()),
	})
}

// SetKeys replaces the published key set, simulating key rotation.
func (f *jwksFixture) SetKeys(keys []map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = keys
}

// SetStatus changes the HTTP status the fixture responds with.
func (f *jwksFixture) SetStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

// URL returns the JWKS endpoint URL.
func (f *jwksFixture) URL() string { return f.srv.URL }

// Hits returns how many fetches the fixture has served.
func (f *jwksFixture) Hits() int64 { return f.hits.Load() }

// testConfig returns a valid Config pointed at the given key set URL.
func testConfig(keySetURL string) Config {
	cfg := DefaultConfig()
	cfg.Issuer = testIssuer
	cfg.Audience = testAudience
	cfg.KeySetURL = keySetURL
	cfg.TokenCacheMaxSize = 100
	return cfg
}
