// Package rbac implements the role/permission/policy access-control
// engine.
//
// # Evaluation model
//
// A request is first checked against the user's effective permission set
// (the union of every held role's permissions with those of all
// transitively inherited roles). A direct hit, whether an exact permission,
// a resource wildcard, or the global system.admin grant, allows immediately and
// bypasses policy evaluation entirely. Otherwise active policies are
// walked in descending priority; the first matching deny rule wins.
// Allow-effect rules are recorded in the decision's applied-policy list
// but have no gating effect, and the decision defaults to allow when no
// deny matches. That default-allow-unless-denied shape is preserved as
// observed in production; treat it as load-bearing before changing it.
//
// # Failure posture
//
// A directory lookup failure denies (fail-closed). Inheritance resolution
// does not guard against cycles; role CRUD validates referential existence
// only.
package rbac
