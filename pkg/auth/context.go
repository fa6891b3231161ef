package auth

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// contextKey is an unexported type for context keys in this package,
// preventing collisions with keys from other packages.
type contextKey int

const (
	// identityKey stores the authenticated *Identity in the request context.
	identityKey contextKey = iota

	// authContextKey stores the authentication Context (which may be
	// anonymous) in the request context.
	authContextKey
)

// ContextWithIdentity returns a new context carrying the given
// identity. Typically called by the HTTP middleware and gRPC
// interceptors after successful authentication.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext retrieves the authenticated identity from the
// context. Returns nil and false when no identity is present; it never
// returns a non-nil identity with false.
//
// Example:
//
//	identity, ok := auth.IdentityFromContext(ctx)
//	if !ok {
//	    return agerr.Unauthorized("no identity in context")
//	}
//	log.Info("request", "subject", identity.Subject())
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*Identity)
	return identity, ok && identity != nil
}

// MustIdentityFromContext retrieves the identity from the context,
// panicking if none is present. Only for code paths that run strictly
// behind the required-auth middleware.
func MustIdentityFromContext(ctx context.Context) *Identity {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		panic("auth: no identity in context; ensure authentication middleware is configured")
	}
	return identity
}

// ContextWithAuth returns a new context carrying the authentication
// [Context]. Used by the optional-auth middleware, where the result may
// be anonymous.
func ContextWithAuth(ctx context.Context, ac Context) context.Context {
	return context.WithValue(ctx, authContextKey, ac)
}

// AuthContextFromContext retrieves the authentication [Context] from
// the request context. When none has been set, the anonymous Context
// and false are returned.
func AuthContextFromContext(ctx context.Context) (Context, bool) {
	ac, ok := ctx.Value(authContextKey).(Context)
	if !ok {
		return Anonymous(), false
	}
	return ac, true
}

// TraceIDFromContext extracts the OpenTelemetry trace ID from the
// context as a hex string. Returns "" and false when no trace is
// active. This links authentication events to distributed traces.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.TraceID().String(), true
}

// SpanIDFromContext extracts the OpenTelemetry span ID from the context
// as a hex string. Returns "" and false when no span is active.
func SpanIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.SpanID().String(), true
}
