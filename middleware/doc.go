// Package middleware composes the per-request security pipeline: bearer
// authentication with token binding, token-bucket rate limiting, IP
// filtering, security response headers, CSRF protection, MFA and session
// gates, and RBAC authorization.
//
// Stages are standard func(http.Handler) http.Handler wrappers so they
// compose with any chi- or stdlib-style router. [Chain.Protect] assembles
// them in the fixed order below; any stage failure short-circuits the
// rest, and no partial authorization is ever granted.
//
//	security headers (applies regardless of auth outcome)
//	authentication (Bearer + claim-bound IP/UA match)
//	rate limiting  (global, then per-IP, then per-user)
//	IP filtering
//	CSRF
//	MFA gate
//	session gate
//	authorization
//
// Client IP resolution prefers the first syntactically valid address in
// X-Forwarded-For, then X-Real-IP, then the transport peer address.
package middleware
