package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agerr "github.com/askgrid/askgrid-core/pkg/errors"
)

// ---------------------------------------------------------------------------
// ClaimSet accessor tests
// ---------------------------------------------------------------------------

func TestClaimSet_String(t *testing.T) {
	t.Parallel()
	cs := ClaimSet{"sub": "user-1", "count": float64(3)}

	s, ok := cs.String("sub")
	assert.True(t, ok)
	assert.Equal(t, "user-1", s)

	_, ok = cs.String("count")
	assert.False(t, ok, "non-string claim should not read as string")

	_, ok = cs.String("missing")
	assert.False(t, ok)
}

func TestClaimSet_StringList_SkipsNonStrings(t *testing.T) {
	t.Parallel()
	// JSON arrays decode as []any and may carry mixed members.
	cs := ClaimSet{"roles": []any{"admin", 42, "viewer", true}}
	assert.Equal(t, []string{"admin", "viewer"}, cs.StringList("roles"))
}

func TestClaimSet_StringList_AbsentOrWrongType(t *testing.T) {
	t.Parallel()
	cs := ClaimSet{"roles": "not-a-list"}
	assert.Empty(t, cs.StringList("roles"))
	assert.Empty(t, cs.StringList("missing"))
}

func TestClaimSet_Time_Float64(t *testing.T) {
	t.Parallel()
	now := time.Now().Truncate(time.Second)
	cs := ClaimSet{"exp": float64(now.Unix())}

	got, ok := cs.Time("exp")
	require.True(t, ok)
	assert.True(t, got.Equal(now))
}

func TestClaimSet_Time_Absent(t *testing.T) {
	t.Parallel()
	cs := ClaimSet{"exp": "tomorrow"}
	_, ok := cs.Time("exp")
	assert.False(t, ok)
}

func TestClaimSet_Audience_StringAndArray(t *testing.T) {
	t.Parallel()

	single := ClaimSet{"aud": "askgrid-api"}
	assert.Equal(t, []string{"askgrid-api"}, single.Audience())

	multi := ClaimSet{"aud": []any{"askgrid-api", "other-api"}}
	assert.Equal(t, []string{"askgrid-api", "other-api"}, multi.Audience())

	none := ClaimSet{}
	assert.Empty(t, none.Audience())
}

func TestClaimSet_Scopes_WhitespaceSplit(t *testing.T) {
	t.Parallel()

	cs := ClaimSet{"scope": "  chat:ask   chat:history\tadmin:export "}
	assert.Equal(t, []string{"chat:ask", "chat:history", "admin:export"}, cs.Scopes())

	empty := ClaimSet{"scope": ""}
	assert.Empty(t, empty.Scopes())

	absent := ClaimSet{}
	assert.Empty(t, absent.Scopes())
}

// ---------------------------------------------------------------------------
// CheckClaims tests
// ---------------------------------------------------------------------------

// checkConfig returns a minimal Config for claims validation tests.
func checkConfig() Config {
	cfg := testConfig("")
	cfg.ClockSkew = 30 * time.Second
	return cfg
}

// claimsFor builds a ClaimSet the way JSON decoding would (numeric
// claims as float64).
func claimsFor(iss, aud string, exp time.Time) ClaimSet {
	cs := ClaimSet{}
	if iss != "" {
		cs["iss"] = iss
	}
	if aud != "" {
		cs["aud"] = aud
	}
	if !exp.IsZero() {
		cs["exp"] = float64(exp.Unix())
	}
	return cs
}

func TestCheckClaims_Valid(t *testing.T) {
	t.Parallel()
	cfg := checkConfig()
	claims := claimsFor(testIssuer, testAudience, time.Now().Add(time.Hour))
	assert.Nil(t, CheckClaims(claims, time.Now(), &cfg))
}

func TestCheckClaims_MissingExpiry(t *testing.T) {
	t.Parallel()
	cfg := checkConfig()
	claims := claimsFor(testIssuer, testAudience, time.Time{})

	err := CheckClaims(claims, time.Now(), &cfg)
	require.NotNil(t, err)
	assert.Equal(t, agerr.CodeAuthenticationMissingExpiry, err.Code,
		"a token without expiry is rejected, never treated as non-expiring")
}

func TestCheckClaims_Expired(t *testing.T) {
	t.Parallel()
	cfg := checkConfig()
	claims := claimsFor(testIssuer, testAudience, time.Now().Add(-time.Hour))

	err := CheckClaims(claims, time.Now(), &cfg)
	require.NotNil(t, err)
	assert.Equal(t, agerr.CodeAuthenticationExpired, err.Code)
}

func TestCheckClaims_ExpiredWithinSkew_Valid(t *testing.T) {
	t.Parallel()
	cfg := checkConfig()
	// Expired 10 seconds ago, inside the 30-second skew window.
	claims := claimsFor(testIssuer, testAudience, time.Now().Add(-10*time.Second))
	assert.Nil(t, CheckClaims(claims, time.Now(), &cfg))
}

func TestCheckClaims_WrongIssuer(t *testing.T) {
	t.Parallel()
	cfg := checkConfig()
	claims := claimsFor("https://evil.example.com", testAudience, time.Now().Add(time.Hour))

	err := CheckClaims(claims, time.Now(), &cfg)
	require.NotNil(t, err)
	assert.Equal(t, agerr.CodeAuthenticationInvalidIssuer, err.Code)
}

func TestCheckClaims_WrongAudience(t *testing.T) {
	t.Parallel()
	cfg := checkConfig()
	claims := claimsFor(testIssuer, "someone-else", time.Now().Add(time.Hour))

	err := CheckClaims(claims, time.Now(), &cfg)
	require.NotNil(t, err)
	assert.Equal(t, agerr.CodeAuthenticationInvalidAudience, err.Code)
}

func TestCheckClaims_AudienceArray_ContainsExpected(t *testing.T) {
	t.Parallel()
	cfg := checkConfig()
	claims := claimsFor(testIssuer, "", time.Now().Add(time.Hour))
	claims["aud"] = []any{"other-api", testAudience}
	assert.Nil(t, CheckClaims(claims, time.Now(), &cfg))
}

func TestCheckClaims_AudienceNotConfigured_Skipped(t *testing.T) {
	t.Parallel()
	cfg := checkConfig()
	cfg.Audience = ""
	claims := claimsFor(testIssuer, "whatever", time.Now().Add(time.Hour))
	assert.Nil(t, CheckClaims(claims, time.Now(), &cfg))
}

// TestCheckClaims_Order verifies the deterministic first-failure order:
// a token that is simultaneously missing expiry, mis-issued, and
// mis-addressed always reports the checks in the documented sequence.
func TestCheckClaims_Order(t *testing.T) {
	t.Parallel()
	cfg := checkConfig()

	tests := []struct {
		name   string
		claims ClaimSet
		want   agerr.Code
	}{
		{
			name:   "missing expiry reported before bad issuer and audience",
			claims: claimsFor("https://evil.example.com", "someone-else", time.Time{}),
			want:   agerr.CodeAuthenticationMissingExpiry,
		},
		{
			name:   "expiry reported before bad issuer and audience",
			claims: claimsFor("https://evil.example.com", "someone-else", time.Now().Add(-time.Hour)),
			want:   agerr.CodeAuthenticationExpired,
		},
		{
			name:   "issuer reported before bad audience",
			claims: claimsFor("https://evil.example.com", "someone-else", time.Now().Add(time.Hour)),
			want:   agerr.CodeAuthenticationInvalidIssuer,
		},
		{
			name:   "audience reported last",
			claims: claimsFor(testIssuer, "someone-else", time.Now().Add(time.Hour)),
			want:   agerr.CodeAuthenticationInvalidAudience,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := CheckClaims(tt.claims, time.Now(), &cfg)
			require.NotNil(t, err)
			assert.Equal(t, tt.want, err.Code)
		})
	}
}
