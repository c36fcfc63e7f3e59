package token

import "errors"

var (
	// ErrInvalid covers malformed tokens, bad signatures, unexpected
	// algorithms, wrong issuer, and wrong audience.
	ErrInvalid = errors.New("invalid token")
	// ErrExpired is returned when exp has passed.
	ErrExpired = errors.New("token expired")
	// ErrNotYetValid is returned when nbf is in the future.
	ErrNotYetValid = errors.New("token not yet valid")
	// ErrBlacklisted is returned when the token has a live revocation entry.
	ErrBlacklisted = errors.New("token revoked")
	// ErrWrongType is returned when an operation receives a token of the
	// wrong type, e.g. an access token on the refresh path.
	ErrWrongType = errors.New("wrong token type")
	// ErrBindingMismatch is returned when a presented client attribute does
	// not match the one bound into the token at issuance.
	ErrBindingMismatch = errors.New("token binding mismatch")
	// ErrBackendUnavailable wraps blacklist backend failures.
	ErrBackendUnavailable = errors.New("blacklist backend unavailable")
	// ErrSigningFailed wraps private-key signing failures.
	ErrSigningFailed = errors.New("token signing failed")
)
