package auth

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	agerr "github.com/askgrid/askgrid-core/pkg/errors"
)

// ---------------------------------------------------------------------------
// Verifier — structural checks and signature verification
// ---------------------------------------------------------------------------

// Verifier checks that a token is a structurally valid JWS signed with
// an allowed algorithm by a key the [KeySetResolver] knows. It decodes
// the payload but interprets no claim semantics; expiry, issuer, and
// audience are the business of [CheckClaims].
//
// Verifier is safe for concurrent use by multiple goroutines.
type Verifier struct {
	cfg      *Config
	resolver *KeySetResolver
}

// NewVerifier creates a Verifier that resolves signing keys through the
// given resolver.
func NewVerifier(cfg *Config, resolver *KeySetResolver) *Verifier {
	return &Verifier{cfg: cfg, resolver: resolver}
}

// Verify checks the token's structure, algorithm, and signature, and
// returns the decoded claim set on success.
//
// The algorithm allow-list is enforced on the unverified header before
// any key resolution or signature work, so a token declaring "none" or
// an unexpected algorithm is rejected without network traffic.
// Signature verification runs with claims validation disabled; the
// returned claim set has not yet passed [CheckClaims].
func (v *Verifier) Verify(ctx context.Context, tokenStr string) (ClaimSet, error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(tokenStr, jwt.MapClaims{})
	if err != nil || unverified == nil {
		return nil, agerr.New(agerr.CodeAuthenticationMalformed,
			"auth: token is not a well-formed JWT")
	}

	alg, _ := unverified.Header["alg"].(string)
	if strings.EqualFold(alg, "none") || !slices.Contains(v.cfg.AllowedAlgorithms, alg) {
		return nil, agerr.Newf(agerr.CodeAuthenticationMalformed,
			"auth: signing algorithm %q is not permitted", alg)
	}

	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, agerr.New(agerr.CodeAuthenticationUnknownKey,
			"auth: token header has no kid")
	}

	key, err := v.resolver.Resolve(ctx, kid)
	if err != nil {
		return nil, err
	}

	token, err := jwt.NewParser(
		jwt.WithValidMethods(v.cfg.AllowedAlgorithms),
		jwt.WithoutClaimsValidation(),
	).Parse(tokenStr, func(*jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return nil, classifyVerifyError(err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, agerr.New(agerr.CodeAuthenticationMalformed,
			"auth: unable to decode token claims")
	}

	claims := make(ClaimSet, len(mc))
	for k, val := range mc {
		claims[k] = val
	}
	return claims, nil
}

// classifyVerifyError maps jwt library parse errors to typed errors.
// Anything that is not clearly a structural problem is reported as a
// bad signature.
func classifyVerifyError(err error) *agerr.Error {
	var agError *agerr.Error
	if errors.As(err, &agError) {
		return agError
	}

	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return agerr.Wrap(err, agerr.CodeAuthenticationMalformed,
			"auth: token is malformed")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return agerr.Wrap(err, agerr.CodeAuthenticationBadSignature,
			"auth: token signature does not verify")
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return agerr.Wrap(err, agerr.CodeAuthenticationBadSignature,
			"auth: token is unverifiable")
	default:
		return agerr.Wrap(err, agerr.CodeAuthenticationBadSignature,
			"auth: token verification failed")
	}
}
