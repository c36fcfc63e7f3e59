package mfa

import "errors"

var (
	// ErrChallengeInvalid covers unknown challenge ids and every other
	// shape of bad verification input. The message is generic on purpose.
	ErrChallengeInvalid = errors.New("mfa challenge invalid")
	// ErrChallengeExpired is returned once a challenge's TTL has passed.
	ErrChallengeExpired = errors.New("mfa challenge expired")
	// ErrChallengeAttemptsExceeded is returned once the attempt budget is
	// exhausted, including for a correct code supplied too late.
	ErrChallengeAttemptsExceeded = errors.New("maximum attempts exceeded")
	// ErrBackendUnavailable wraps challenge or backup store failures.
	ErrBackendUnavailable = errors.New("mfa backend unavailable")
)
