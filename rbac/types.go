package rbac

import (
	"context"
	"time"
)

// Effect is a policy rule outcome.
type Effect string

const (
	// EffectAllow marks a rule as advisory; matching allow rules are
	// recorded but never gate.
	EffectAllow Effect = "allow"
	// EffectDeny marks a rule as gating; the first matching deny wins.
	EffectDeny Effect = "deny"
)

// Wildcard matches any resource or any action in a policy rule.
const Wildcard = "*"

// AdminPermission is the global grant that bypasses all checks.
const AdminPermission = "system.admin"

// Permission is a grantable capability, identified as "resource.action".
type Permission struct {
	ID        string
	Resource  string
	Action    string
	Condition *Condition
	System    bool
}

// Role is a named permission set. Inherits references other role ids whose
// permissions are unioned in transitively. No cycle detection is performed
// on the inheritance graph.
type Role struct {
	ID          string
	Permissions []string
	Inherits    []string
	System      bool
}

// PolicyRule matches a resource (exact or wildcard) and a set of actions
// (exact or wildcard) under an optional condition.
type PolicyRule struct {
	Resource  string
	Actions   []string
	Effect    Effect
	Condition *Condition
}

// Policy is an ordered rule list with a numeric priority. Only active
// policies are evaluated.
type Policy struct {
	ID            string
	Rules         []PolicyRule
	DefaultEffect Effect
	Priority      int
	Active        bool
}

// AccessRequest describes one authorization question.
type AccessRequest struct {
	UserID    string
	Resource  string
	Action    string
	TeamID    string
	IP        string
	UserAgent string
	SessionID string
	Timestamp time.Time
	Context   map[string]string
}

// AccessDecision is the engine's answer. CacheTTL is advisory only.
type AccessDecision struct {
	Allowed         bool
	Reason          string
	AppliedPolicies []string
	CacheTTL        time.Duration
}

// Directory resolves a user's role set. It is the only external
// collaborator of the engine and must honor ctx cancellation.
type Directory interface {
	UserRoles(ctx context.Context, userID, teamID string) ([]string, error)
}

// DecisionHook receives every decision before it is returned. Wiring it to
// an audit sink is the caller's responsibility; persistence is external.
type DecisionHook func(ctx context.Context, req AccessRequest, dec AccessDecision)
