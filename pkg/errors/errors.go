// Package errors provides standardized error types and error handling
// utilities for the AskGrid platform. It defines common error categories,
// stable error codes, and helper functions for creating, wrapping, and
// inspecting errors across all AskGrid services.
//
// # Error Categories
//
// The package defines several error categories that map to common failure
// scenarios:
//
//   - Validation errors: Invalid input, missing required fields
//   - Authentication errors: Missing, malformed, expired, or unverifiable tokens
//   - Authorization errors: Insufficient roles or scopes, access denied
//   - NotFound errors: Resource does not exist
//   - Conflict errors: Resource already exists, version mismatch
//   - Internal errors: Unexpected system failures
//   - Unavailable errors: Service or dependency temporarily unavailable
//   - Timeout errors: Operation exceeded time limit
//
// The authentication category is deliberately fine-grained: token validation
// distinguishes malformed tokens, unknown signing keys, bad signatures,
// expired or expiry-less tokens, and issuer/audience mismatches, each with
// its own stable code. Callers route on the code, never on message text.
//
// # Error Codes
//
// Each error includes a machine-readable code (e.g., "AUTH_004") that can be
// used for error tracking, alerting, and client-side error handling. Error
// codes follow the pattern CATEGORY_XXX where CATEGORY is a short identifier
// and XXX is a numeric code.
//
// # Usage
//
// Create a new error with context:
//
//	err := errors.New(errors.CodeValidation, "question must not be empty")
//
// Wrap an existing error:
//
//	err := errors.Wrap(err, errors.CodeInternalDatabase, "failed to record vote")
//
// Check error category:
//
//	if errors.IsAuthentication(err) {
//	    // respond 401
//	}
//
// Extract error details for logging:
//
//	if e, ok := errors.AsError(err); ok {
//	    logger.Error("operation failed",
//	        "code", e.Code,
//	        "message", e.Message,
//	    )
//	}
package errors
