package auth

import (
	"strings"

	agerr "github.com/askgrid/askgrid-core/pkg/errors"
)

// ---------------------------------------------------------------------------
// Guards — explicit authorization checks
// ---------------------------------------------------------------------------

// Guard is an authorization check against an authenticated identity.
// A nil result means access is granted. Guards are explicit values that
// handlers invoke where they need them; nothing in this package applies
// a guard implicitly.
//
// Every guard distinguishes missing authentication from insufficient
// privilege: a nil identity fails with [agerr.CodeAuthentication]
// (HTTP 401), never with an authorization code (HTTP 403). Guards never
// mutate the identity they inspect.
type Guard func(*Identity) *agerr.Error

// RequireRoles grants access when the caller holds at least one of the
// given roles. The failure message lists the acceptable set.
func RequireRoles(roles ...string) Guard {
	return func(identity *Identity) *agerr.Error {
		if identity == nil {
			return errAuthenticationRequired()
		}
		if !identity.HasAnyRole(roles...) {
			return agerr.Newf(agerr.CodeAuthorizationDenied,
				"auth: requires one of roles [%s]", strings.Join(roles, ", "))
		}
		return nil
	}
}

// RequireAllRoles grants access only when the caller holds every one of
// the given roles. The failure enumerates exactly which roles are
// missing, so a caller with three of four required roles learns which
// one they lack.
func RequireAllRoles(roles ...string) Guard {
	return func(identity *Identity) *agerr.Error {
		if identity == nil {
			return errAuthenticationRequired()
		}
		if missing := identity.MissingRoles(roles...); len(missing) > 0 {
			return agerr.Newf(agerr.CodeAuthorizationDenied,
				"auth: missing required roles [%s]", strings.Join(missing, ", "))
		}
		return nil
	}
}

// RequireScope grants access when the caller's token carries the given
// OAuth2 scope.
func RequireScope(scope string) Guard {
	return func(identity *Identity) *agerr.Error {
		if identity == nil {
			return errAuthenticationRequired()
		}
		if !identity.HasScope(scope) {
			return agerr.Newf(agerr.CodeAuthorizationInsufficientScope,
				"auth: requires scope %q", scope)
		}
		return nil
	}
}

// CheckGuards evaluates guards in order against the identity and
// returns the first failure, or nil when all pass.
func CheckGuards(identity *Identity, guards ...Guard) *agerr.Error {
	for _, g := range guards {
		if err := g(identity); err != nil {
			return err
		}
	}
	return nil
}

func errAuthenticationRequired() *agerr.Error {
	return agerr.New(agerr.CodeAuthentication, "auth: authentication required")
}
