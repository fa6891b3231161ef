package auth

import (
	"net/http"
	"strings"

	agerr "github.com/askgrid/askgrid-core/pkg/errors"
)

// HeaderAuthorization is the header (and gRPC metadata key) carrying
// the bearer token.
const HeaderAuthorization = "authorization"

// bearerPrefix is the expected authorization scheme prefix, matched
// case-insensitively.
const bearerPrefix = "Bearer "

// ExtractBearerToken extracts the token from an authorization header
// value. The "Bearer " prefix is matched case-insensitively. Returns ""
// when the header is empty or uses a different scheme.
func ExtractBearerToken(authHeader string) string {
	if len(authHeader) <= len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return authHeader[len(bearerPrefix):]
}

// HTTPMiddleware returns middleware that requires a valid bearer token
// on every request. On success the identity and an authenticated
// [Context] are stored in the request context for handlers and guards.
//
// Failure status codes follow the error taxonomy: authentication-class
// failures (bad, expired, or missing tokens) produce 401; an
// [agerr.CodeUnavailable] failure, meaning the caller could not be
// validated because of infrastructure such as an unconfigured key set
// endpoint, produces 503. Response bodies are generic; the specific
// rejection reason is recorded on the trace span, not leaked to the
// caller.
//
// Example:
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/api/sessions", handleSessions)
//	handler := auth.HTTPMiddleware(authenticator)(mux)
func HTTPMiddleware(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearerToken(r.Header.Get(HeaderAuthorization))
			if token == "" {
				http.Error(w, "missing or invalid authorization header", http.StatusUnauthorized)
				return
			}

			ctx := r.Context()
			identity, err := a.Authenticate(ctx, token)
			if err != nil {
				if agerr.IsUnavailable(err) {
					http.Error(w, "authentication temporarily unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "token validation failed", http.StatusUnauthorized)
				return
			}

			ctx = ContextWithIdentity(ctx, identity)
			ctx = ContextWithAuth(ctx, Authenticated(identity))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalHTTPMiddleware returns middleware that never rejects a
// request: a missing or invalid token simply yields the anonymous
// [Context]. Handlers decide what anonymous callers may do, usually by
// branching on [Context.IsAuthenticated] or by invoking a [Guard]
// (which fails a nil identity with 401 semantics).
func OptionalHTTPMiddleware(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := ExtractBearerToken(r.Header.Get(HeaderAuthorization))

			ac := a.AuthenticateOptional(ctx, token)
			ctx = ContextWithAuth(ctx, ac)
			if ac.IsAuthenticated() {
				ctx = ContextWithIdentity(ctx, ac.Identity())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
