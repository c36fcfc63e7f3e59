// Package token implements issuance, validation, refresh, and revocation
// of RSA-signed JWT token pairs.
//
// # Wire format
//
// Tokens are RS256 (RSA-2048, SHA-256) JWTs. The header carries alg and a
// kid derived from the SHA-256 of the public key's PKIX encoding, so
// verifiers can survive key rotation as long as they can resolve kid to a
// key. Access tokens carry role, permissions, team, and mfa-verified
// claims; refresh tokens carry identity and session/device/IP binding
// only; mfa tokens are a short-lived intermediate credential between
// password check and MFA completion and carry no role or permissions.
//
// # Revocation
//
// Revocation goes through a [Blacklist]. Entries are bounded by the
// token's natural expiry, so the blacklist never grows past the in-flight
// token population. There is no ordering guarantee between a concurrent
// Revoke and an in-flight Validate for the same token; a validate racing
// its own revocation may succeed, which is an accepted eventual-consistency
// property.
package token
