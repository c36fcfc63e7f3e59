package aegis

import (
	"errors"

	"github.com/flowforge-io/aegis/mfa"
	"github.com/flowforge-io/aegis/token"
)

var (
	// ErrUnauthorized covers every authentication failure surfaced to a
	// caller: missing or malformed credential, bad signature, expired or
	// not-yet-valid token, blacklisted token, or a binding mismatch.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden covers explicit authorization denials.
	ErrForbidden = errors.New("forbidden")
	// ErrRateLimited is returned when a request exceeds its token bucket.
	ErrRateLimited = errors.New("too many requests")
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("bad request")
	// ErrMFARequired is returned when a second factor must be completed
	// before the operation can proceed.
	ErrMFARequired = errors.New("mfa required")
	// ErrMFAInvalid is returned for any failed MFA verification. The
	// message is deliberately generic and never reveals whether the code
	// or the session was wrong.
	ErrMFAInvalid = errors.New("mfa verification failed")
	// ErrInternal is the opaque surface for signing or collaborator
	// failures. Detail goes to the audit trail, never to the caller.
	ErrInternal = errors.New("internal error")
	// ErrSessionNotFound is returned when a session id resolves to nothing.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUserNotFound is returned when a directory lookup resolves to nothing.
	ErrUserNotFound = errors.New("user not found")
	// ErrEngineNotReady is returned when an Engine method is called on a
	// nil or incompletely built engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Kind classifies an error into the caller-visible taxonomy. The HTTP
// layer maps kinds to status codes; the engine maps every failure path to
// exactly one kind so no internal detail leaks by accident.
type Kind int

const (
	// KindInternal is the fallback classification.
	KindInternal Kind = iota
	// KindUnauthorized maps to HTTP 401.
	KindUnauthorized
	// KindForbidden maps to HTTP 403.
	KindForbidden
	// KindRateLimited maps to HTTP 429.
	KindRateLimited
	// KindValidation maps to HTTP 400.
	KindValidation
)

// KindOf reports the taxonomy kind of err. Unknown errors classify as
// KindInternal so collaborator failures stay opaque.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, token.ErrBlacklisted),
		errors.Is(err, token.ErrInvalid),
		errors.Is(err, token.ErrExpired),
		errors.Is(err, token.ErrNotYetValid),
		errors.Is(err, token.ErrWrongType),
		errors.Is(err, token.ErrBindingMismatch),
		errors.Is(err, mfa.ErrChallengeInvalid),
		errors.Is(err, ErrMFAInvalid):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden),
		errors.Is(err, ErrMFARequired),
		errors.Is(err, mfa.ErrChallengeExpired),
		errors.Is(err, mfa.ErrChallengeAttemptsExceeded):
		return KindForbidden
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindInternal
	}
}
