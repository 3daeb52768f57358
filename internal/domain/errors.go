package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	// ErrCodeUnavailable means no live verification code exists for an email:
	// it was never issued, it expired, or it was consumed by activation.
	ErrCodeUnavailable = errors.New("verification code unavailable")
	// ErrCodeMismatch means a code exists but does not match the submitted one.
	ErrCodeMismatch = errors.New("verification code mismatch")
	// ErrStoreUnavailable wraps backend failures of the code store. It is never
	// used to signal absence.
	ErrStoreUnavailable = errors.New("code store unavailable")
)
