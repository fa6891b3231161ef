package auth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	agerr "github.com/askgrid/askgrid-core/pkg/errors"
)

// UnaryServerInterceptor returns a gRPC unary interceptor that requires
// a valid bearer token in the "authorization" metadata on every call.
// On success the identity and an authenticated [Context] are stored in
// the handler's context.
//
// Status codes mirror the HTTP middleware: authentication-class
// failures map to codes.Unauthenticated, and [agerr.CodeUnavailable]
// (infrastructure, not caller rejection) maps to codes.Unavailable.
func UnaryServerInterceptor(a *Authenticator) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, err := authenticateGRPC(ctx, a)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor returns a gRPC stream interceptor performing
// the same authentication as [UnaryServerInterceptor], wrapping the
// stream so handlers see the enriched context.
func StreamServerInterceptor(a *Authenticator) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, err := authenticateGRPC(ss.Context(), a)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

// authenticateGRPC extracts the bearer token from incoming metadata,
// authenticates it, and returns a context carrying the identity.
func authenticateGRPC(ctx context.Context, a *Authenticator) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, status.Error(codes.Unauthenticated, "missing metadata")
	}

	values := md.Get(HeaderAuthorization)
	if len(values) == 0 {
		return ctx, status.Error(codes.Unauthenticated, "missing authorization metadata")
	}
	token := ExtractBearerToken(values[0])
	if token == "" {
		return ctx, status.Error(codes.Unauthenticated, "invalid authorization format")
	}

	identity, err := a.Authenticate(ctx, token)
	if err != nil {
		if agerr.IsUnavailable(err) {
			return ctx, status.Error(codes.Unavailable, "authentication temporarily unavailable")
		}
		return ctx, status.Error(codes.Unauthenticated, "token validation failed")
	}

	ctx = ContextWithIdentity(ctx, identity)
	ctx = ContextWithAuth(ctx, Authenticated(identity))
	return ctx, nil
}

// wrappedServerStream overrides Context so stream handlers observe the
// identity added by the interceptor; ServerStream.Context() would
// otherwise return the original stream context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the enriched context carrying identity information.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
