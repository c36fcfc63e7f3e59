// Package aegis provides an authentication and authorization engine with
// RSA-signed JWT token pairs, rotation-on-use refresh tokens, a
// role/permission/policy access-control engine, multi-factor challenge
// flows, and a fixed-order HTTP security middleware chain.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// aegis is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (Principal, Session, SecurityReport, MetricsSnapshot).
// Subsystems live in their own packages (token issuance and revocation in
// package token, access control in package rbac, second factors in package
// mfa, the request pipeline in package middleware) and all asynchronous
// coordination (audit dispatch, metric counters) lives under internal/ and
// is never exported directly.
//
// # What this package must NOT do
//
//   - Persist users, sessions, or roles itself. Those belong to the
//     caller-supplied [UserDirectory] and [SessionStore] collaborators.
//   - Deliver SMS or email codes. Delivery is delegated to [SMSSender] and
//     [EmailSender] and is fire-and-forget.
//   - Block an Engine method on a slow collaborator without honoring the
//     caller's context.
//
// # Consistency contract
//
// Revocation is best-effort: a token may still validate in a race window
// concurrent with its own revocation. Callers that need a hard cut must
// also delete the session, which the middleware's session gate enforces on
// the next request.
package aegis
