package auth

import (
	"slices"
	"time"
)

// ---------------------------------------------------------------------------
// Identity — the authenticated caller
// ---------------------------------------------------------------------------

// Identity represents an authenticated caller, built from a validated
// claim set by [mapIdentity]. The subject is never empty; every other
// field is optional. Identity is immutable after creation: slice
// accessors return defensive copies, so no caller can change what
// another observes.
//
// Identity is safe for concurrent use by multiple goroutines.
type Identity struct {
	subject           string
	email             string
	displayName       string
	preferredUsername string
	roles             []string
	groups            []string
	scopes            []string
	issuedAt          time.Time
	expiresAt         time.Time
}

// Subject returns the unique identifier of the caller (the "sub"
// claim). Never empty for an identity produced by authentication.
func (i *Identity) Subject() string { return i.subject }

// Email returns the caller's email address, or "" when the token
// carried none.
func (i *Identity) Email() string { return i.email }

// DisplayName returns the caller's display name ("name" claim), or "".
func (i *Identity) DisplayName() string { return i.displayName }

// PreferredUsername returns the "preferred_username" claim, or "".
func (i *Identity) PreferredUsername() string { return i.preferredUsername }

// Roles returns a copy of the caller's role names.
func (i *Identity) Roles() []string {
	return slices.Clone(i.roles)
}

// Groups returns a copy of the caller's group memberships.
func (i *Identity) Groups() []string {
	return slices.Clone(i.groups)
}

// Scopes returns a copy of the caller's OAuth2 scopes.
func (i *Identity) Scopes() []string {
	return slices.Clone(i.scopes)
}

// IssuedAt returns when the token was issued. The second return value
// is false when the token carried no "iat" claim.
func (i *Identity) IssuedAt() (time.Time, bool) {
	return i.issuedAt, !i.issuedAt.IsZero()
}

// ExpiresAt returns when the token expires. The second return value is
// false when no expiry is recorded (only possible for identities built
// outside the authentication pipeline, e.g. in tests).
func (i *Identity) ExpiresAt() (time.Time, bool) {
	return i.expiresAt, !i.expiresAt.IsZero()
}

// HasRole reports whether the caller holds the given role.
func (i *Identity) HasRole(role string) bool {
	return slices.Contains(i.roles, role)
}

// HasAnyRole reports whether the caller holds at least one of the given
// roles. An empty argument list yields false.
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if slices.Contains(i.roles, r) {
			return true
		}
	}
	return false
}

// HasAllRoles reports whether the caller holds every one of the given
// roles. An empty argument list yields true.
func (i *Identity) HasAllRoles(roles ...string) bool {
	return len(i.MissingRoles(roles...)) == 0
}

// MissingRoles returns the subset of the given roles that the caller
// does not hold, preserving argument order. An empty result means the
// caller holds them all.
func (i *Identity) MissingRoles(roles ...string) []string {
	missing := make([]string, 0, len(roles))
	for _, r := range roles {
		if !slices.Contains(i.roles, r) {
			missing = append(missing, r)
		}
	}
	return missing
}

// HasScope reports whether the caller's token granted the given OAuth2
// scope.
func (i *Identity) HasScope(scope string) bool {
	return slices.Contains(i.scopes, scope)
}

// mapIdentity builds an Identity from a validated claim set. The
// mapping is total: unknown claims are ignored, absent claims leave
// their fields zero, and non-string members of role and group lists are
// skipped. It never fails; subject presence is enforced by the
// authenticator, not here.
func mapIdentity(claims ClaimSet) *Identity {
	id := &Identity{
		subject: claims.Subject(),
		roles:   claims.StringList("roles"),
		groups:  claims.StringList("groups"),
		scopes:  claims.Scopes(),
	}
	id.email, _ = claims.String("email")
	id.displayName, _ = claims.String("name")
	id.preferredUsername, _ = claims.String("preferred_username")
	if iat, ok := claims.IssuedAt(); ok {
		id.issuedAt = iat
	}
	if exp, ok := claims.ExpiresAt(); ok {
		id.expiresAt = exp
	}
	return id
}

// NewIdentity constructs an Identity directly, bypassing token
// validation. Intended for tests and for trusted in-process callers
// such as background jobs; request paths should always go through
// [Authenticator.Authenticate]. Slices are defensively copied.
func NewIdentity(subject string, roles, groups, scopes []string) *Identity {
	return &Identity{
		subject: subject,
		roles:   slices.Clone(roles),
		groups:  slices.Clone(groups),
		scopes:  slices.Clone(scopes),
	}
}
