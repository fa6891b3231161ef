package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// ExtractBearerToken
// ---------------------------------------------------------------------------

func TestExtractBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"standard", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"lowercase scheme", "bearer abc.def.ghi", "abc.def.ghi"},
		{"mixed case scheme", "BeArEr abc.def.ghi", "abc.def.ghi"},
		{"empty header", "", ""},
		{"scheme only", "Bearer ", ""},
		{"basic scheme", "Basic dXNlcjpwYXNz", ""},
		{"no scheme", "abc.def.ghi", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExtractBearerToken(tt.header))
		})
	}
}

// ---------------------------------------------------------------------------
// HTTPMiddleware
// ---------------------------------------------------------------------------

// identityEchoHandler reports whether the middleware put an identity in
// the request context.
func identityEchoHandler(t *testing.T, gotSubject *string, gotAuthenticated *bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := IdentityFromContext(r.Context()); ok {
			*gotSubject = identity.Subject()
		}
		ac, _ := AuthContextFromContext(r.Context())
		*gotAuthenticated = ac.IsAuthenticated()
		w.WriteHeader(http.StatusOK)
	})
}

func TestHTTPMiddleware_ValidToken(t *testing.T) {
	t.Parallel()
	key := testRSAKey(t)
	fixture := newJWKSFixture(t)
	fixture.AddRSA("kid-1", &key.PublicKey)
	a := newTestAuthenticator(t, fixture)

	var subject string
	var authenticated bool
	handler := HTTPMiddleware(a)(identityEchoHandler(t, &subject, &authenticated))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+signRS256(t, key, "kid-1", validClaims()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-123", subject)
	assert.True(t, authenticated)
}

func TestHTTPMiddleware_MissingToken(t *testing.T) {
	t.Parallel()
	fixture := newJWKSFixture(t)
	a := newTestAuthenticator(t, fixture)

	called := false
	handler := HTTPMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestHTTPMiddleware_InvalidToken(t *testing.T) {
	t.Parallel()
	fixture := newJWKSFixture(t)
	a := newTestAuthenticator(t, fixture)

	handler := HTTPMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run for a rejected token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTPMiddleware_InfrastructureFailure_503(t *testing.T) {
	t.Parallel()
	key := testRSAKey(t)

	// No key set endpoint configured: validation cannot happen at all.
	a, err := NewAuthenticator(testConfig(""))
	require.NoError(t, err)

	handler := HTTPMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run when authentication is unavailable")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+signRS256(t, key, "kid-1", validClaims()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code,
		"infrastructure failure is 503, not a 401 caller rejection")
}

// ---------------------------------------------------------------------------
// OptionalHTTPMiddleware
// ---------------------------------------------------------------------------

func TestOptionalHTTPMiddleware(t *testing.T) {
	t.Parallel()
	key := testRSAKey(t)
	fixture := newJWKSFixture(t)
	fixture.AddRSA("kid-1", &key.PublicKey)
	a := newTestAuthenticator(t, fixture)

	tests := []struct {
		name          string
		header        string
		wantSubject   string
		authenticated bool
	}{
		{"no token", "", "", false},
		{"invalid token", "Bearer garbage", "", false},
		{"valid token", "Bearer " + signRS256(t, key, "kid-1", validClaims()), "user-123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var subject string
			var authenticated bool
			handler := OptionalHTTPMiddleware(a)(identityEchoHandler(t, &subject, &authenticated))

			req := httptest.NewRequest(http.MethodGet, "/api/ask", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code, "optional middleware never rejects")
			assert.Equal(t, tt.wantSubject, subject)
			assert.Equal(t, tt.authenticated, authenticated)
		})
	}
}
