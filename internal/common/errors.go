// Package common defines shared constants and sentinel errors used across
// papervault layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrValidation     = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Storage errors.
	ErrInvalidFileName = errors.New("invalid file name")
	ErrStorageIO       = errors.New("storage i/o error")

	// Envelope and key errors.
	ErrMalformedEnvelope  = errors.New("malformed envelope")
	ErrUnknownRecipient   = errors.New("unknown recipient")
	ErrNotAuthorized      = errors.New("not authorized")
	ErrIntegrityViolation = errors.New("integrity violation")
	ErrSessionLocked      = errors.New("no unlocked session key")

	// Vault and access-control errors.
	ErrReferenceNotFound = errors.New("reference not found")
	ErrPaperNotFound     = errors.New("paper not found")
	ErrDuplicateBinding  = errors.New("duplicate binding")
	ErrUserIsRecipient   = errors.New("user is a recipient of existing papers")
)

// kinds lists the stable names reported at the service boundary. Order
// matters: more specific errors are checked first.
var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidFileName, "InvalidFileName"},
	{ErrStorageIO, "StorageIOError"},
	{ErrMalformedEnvelope, "MalformedEnvelope"},
	{ErrUnknownRecipient, "UnknownRecipient"},
	{ErrNotAuthorized, "NotAuthorized"},
	{ErrSessionLocked, "SessionLocked"},
	{ErrIntegrityViolation, "IntegrityViolation"},
	{ErrReferenceNotFound, "ReferenceNotFound"},
	{ErrPaperNotFound, "PaperNotFound"},
	{ErrDuplicateBinding, "DuplicateBinding"},
	{ErrUserIsRecipient, "UserIsRecipient"},
	{ErrValidation, "Validation"},
	{ErrorUnauthorized, "Unauthorized"},
	{ErrInvalidToken, "InvalidToken"},
	{ErrTokenExpired, "TokenExpired"},
	{ErrRefreshTokenExpired, "RefreshTokenExpired"},
	{ErrorNotFound, "NotFound"},
}

// Kind returns the stable kind name of err, or "Internal" when err does not
// wrap any of the known sentinels.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}

// Message returns the public message for err: the message of the matched
// sentinel, never the wrapped details which may carry paths or driver output.
func Message(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err.Error()
		}
	}
	return ErrorInternal.Error()
}
