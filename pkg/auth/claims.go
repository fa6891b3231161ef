package auth

import (
	"strings"
	"time"

	agerr "github.com/askgrid/askgrid-core/pkg/errors"
)

// ---------------------------------------------------------------------------
// ClaimSet — decoded token payload with typed accessors
// ---------------------------------------------------------------------------

// ClaimSet is the decoded payload of a verified token. It is an untyped
// map as produced by JSON decoding; the typed accessor methods tolerate
// absent claims and wrong-typed values rather than panicking, so callers
// never reach into the map with type assertions of their own.
type ClaimSet map[string]any

// String returns the named claim as a string. The second return value
// is false when the claim is absent or not a string.
func (c ClaimSet) String(name string) (string, bool) {
	s, ok := c[name].(string)
	return s, ok
}

// StringList returns the named claim as a slice of strings. JSON arrays
// decode as []any, so both []any (non-string members skipped) and
// []string values are handled. Absent or wrong-typed claims produce an
// empty slice.
func (c ClaimSet) StringList(name string) []string {
	switch v := c[name].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			if s, ok := entry.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

// Time returns the named claim as a time.Time, interpreting the value
// as Unix seconds. JSON numbers decode as float64; integer values are
// also accepted for claim sets built in tests. The second return value
// is false when the claim is absent or not numeric.
func (c ClaimSet) Time(name string) (time.Time, bool) {
	switch v := c[name].(type) {
	case float64:
		return time.Unix(int64(v), 0), true
	case int64:
		return time.Unix(v, 0), true
	case int:
		return time.Unix(int64(v), 0), true
	default:
		return time.Time{}, false
	}
}

// Subject returns the "sub" claim, or "" when absent.
func (c ClaimSet) Subject() string {
	s, _ := c.String("sub")
	return s
}

// Issuer returns the "iss" claim, or "" when absent.
func (c ClaimSet) Issuer() string {
	s, _ := c.String("iss")
	return s
}

// ExpiresAt returns the "exp" claim as a time.
func (c ClaimSet) ExpiresAt() (time.Time, bool) {
	return c.Time("exp")
}

// IssuedAt returns the "iat" claim as a time.
func (c ClaimSet) IssuedAt() (time.Time, bool) {
	return c.Time("iat")
}

// Audience returns the "aud" claim normalized to a slice. The claim may
// be a single string or an array of strings per RFC 7519; both forms
// are handled. An absent claim produces an empty slice.
func (c ClaimSet) Audience() []string {
	if s, ok := c.String("aud"); ok {
		return []string{s}
	}
	return c.StringList("aud")
}

// Scopes returns the OAuth2 "scope" claim split on whitespace. An
// absent or non-string claim produces an empty slice.
func (c ClaimSet) Scopes() []string {
	s, ok := c.String("scope")
	if !ok {
		return []string{}
	}
	return strings.Fields(s)
}

// ---------------------------------------------------------------------------
// Claims validation
// ---------------------------------------------------------------------------

// CheckClaims validates a verified claim set against the configured
// issuer and audience. Checks run in a fixed order and the first
// failure is returned alone, so a token with several problems always
// reports the same one:
//
//  1. "exp" absent → [agerr.CodeAuthenticationMissingExpiry]. Tokens
//     without an expiry are rejected, never treated as non-expiring.
//  2. "exp" earlier than now minus cfg.ClockSkew →
//     [agerr.CodeAuthenticationExpired].
//  3. "iss" differs from cfg.Issuer →
//     [agerr.CodeAuthenticationInvalidIssuer].
//  4. cfg.Audience non-empty and not present in "aud" →
//     [agerr.CodeAuthenticationInvalidAudience].
//
// CheckClaims interprets only these registered claims; everything else
// in the set is left to [mapIdentity].
func CheckClaims(claims ClaimSet, now time.Time, cfg *Config) *agerr.Error {
	exp, ok := claims.ExpiresAt()
	if !ok {
		return agerr.New(agerr.CodeAuthenticationMissingExpiry,
			"auth: token has no expiry claim")
	}

	if exp.Before(now.Add(-cfg.ClockSkew)) {
		return agerr.New(agerr.CodeAuthenticationExpired,
			"auth: token has expired")
	}

	if iss := claims.Issuer(); iss != cfg.Issuer {
		return agerr.Newf(agerr.CodeAuthenticationInvalidIssuer,
			"auth: token issuer %q is not trusted", iss)
	}

	if cfg.Audience != "" {
		found := false
		for _, aud := range claims.Audience() {
			if aud == cfg.Audience {
				found = true
				break
			}
		}
		if !found {
			return agerr.New(agerr.CodeAuthenticationInvalidAudience,
				"auth: token audience does not include this service")
		}
	}

	return nil
}
