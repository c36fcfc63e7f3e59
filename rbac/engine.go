package rbac

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	reasonDirectGrant      = "direct permission granted"
	reasonNoPolicies       = "no applicable policies"
	reasonDirectoryFailure = "directory lookup failed"

	directGrantCacheTTL = 30 * time.Second
	policyCacheTTL      = 10 * time.Second
)

// Engine holds roles, permissions, and policies behind a reader-writer
// lock: evaluation takes shared locks, CRUD takes exclusive ones. An
// Engine bootstraps the fixed system entities at construction.
type Engine struct {
	mu          sync.RWMutex
	permissions map[string]Permission
	roles       map[string]Role
	policies    map[string]Policy

	directory Directory
	hook      DecisionHook
}

// NewEngine creates an Engine bound to the given directory. The hook (may
// be nil) receives every decision before it is returned.
func NewEngine(directory Directory, hook DecisionHook) *Engine {
	e := &Engine{
		permissions: make(map[string]Permission),
		roles:       make(map[string]Role),
		policies:    make(map[string]Policy),
		directory:   directory,
		hook:        hook,
	}

	for _, p := range systemPermissions() {
		e.permissions[p.ID] = p
	}
	for _, r := range systemRoles() {
		e.roles[r.ID] = r
	}
	for _, p := range systemPolicies() {
		e.policies[p.ID] = p
	}

	return e
}

// CheckAccess evaluates req and returns a decision. Directory failures
// deny (fail-closed). The decision is passed to the hook before return.
func (e *Engine) CheckAccess(ctx context.Context, req AccessRequest) AccessDecision {
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}

	dec := e.decide(ctx, req)
	if e.hook != nil {
		e.hook(ctx, req, dec)
	}
	return dec
}

func (e *Engine) decide(ctx context.Context, req AccessRequest) AccessDecision {
	effective, err := e.effectivePermissions(ctx, req.UserID, req.TeamID)
	if err != nil {
		return AccessDecision{Allowed: false, Reason: reasonDirectoryFailure}
	}

	if hasDirectGrant(effective, req.Resource, req.Action) {
		return AccessDecision{
			Allowed:  true,
			Reason:   reasonDirectGrant,
			CacheTTL: directGrantCacheTTL,
		}
	}

	applied := make([]string, 0, 4)
	for _, policy := range e.activePoliciesByPriority() {
		for _, rule := range policy.Rules {
			if !ruleMatches(rule, req) {
				continue
			}
			if rule.Effect == EffectDeny {
				return AccessDecision{
					Allowed:         false,
					Reason:          policy.ID,
					AppliedPolicies: append(applied, policy.ID),
					CacheTTL:        policyCacheTTL,
				}
			}
			// Allow rules are recorded but never gate.
			applied = append(applied, policy.ID)
			break
		}
	}

	return AccessDecision{
		Allowed:         true,
		Reason:          reasonNoPolicies,
		AppliedPolicies: applied,
		CacheTTL:        policyCacheTTL,
	}
}

// HasPermission reports whether the user's effective permission set grants
// permission, without running policy evaluation.
func (e *Engine) HasPermission(ctx context.Context, userID, teamID, permission string) bool {
	effective, err := e.effectivePermissions(ctx, userID, teamID)
	if err != nil {
		return false
	}
	if effective[permission] || effective[AdminPermission] {
		return true
	}
	if resource, _, ok := splitPermissionID(permission); ok {
		return effective[resource+"."+Wildcard]
	}
	return false
}

// EffectivePermissions returns the deduplicated permission ids reachable
// from every role the directory reports for the user.
func (e *Engine) EffectivePermissions(ctx context.Context, userID, teamID string) ([]string, error) {
	set, err := e.effectivePermissions(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// RolePermissions returns the role's own permissions unioned with those of
// all transitively inherited roles, deduplicated.
func (e *Engine) RolePermissions(roleID string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.roles[roleID]; !ok {
		return nil, ErrRoleNotFound
	}

	set := make(map[string]bool)
	e.expandRoleLocked(roleID, set)

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (e *Engine) effectivePermissions(ctx context.Context, userID, teamID string) (map[string]bool, error) {
	roles, err := e.directory.UserRoles(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	set := make(map[string]bool)
	for _, roleID := range roles {
		e.expandRoleLocked(roleID, set)
	}
	return set, nil
}

// expandRoleLocked unions the role's permissions and recurses into
// inherited roles. Inheritance is not cycle-checked; CRUD only validates
// that references exist.
func (e *Engine) expandRoleLocked(roleID string, set map[string]bool) {
	role, ok := e.roles[roleID]
	if !ok {
		return
	}
	for _, perm := range role.Permissions {
		set[perm] = true
	}
	for _, parent := range role.Inherits {
		e.expandRoleLocked(parent, set)
	}
}

func (e *Engine) activePoliciesByPriority() []Policy {
	e.mu.RLock()
	out := make([]Policy, 0, len(e.policies))
	for _, p := range e.policies {
		if p.Active {
			out = append(out, p)
		}
	}
	e.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

func hasDirectGrant(effective map[string]bool, resource, action string) bool {
	if effective[AdminPermission] {
		return true
	}
	if effective[resource+"."+action] {
		return true
	}
	return effective[resource+"."+Wildcard]
}

func ruleMatches(rule PolicyRule, req AccessRequest) bool {
	if rule.Resource != Wildcard && rule.Resource != req.Resource {
		return false
	}
	actionMatch := false
	for _, a := range rule.Actions {
		if a == Wildcard || a == req.Action {
			actionMatch = true
			break
		}
	}
	if !actionMatch {
		return false
	}
	return rule.Condition.evaluate(req)
}

func splitPermissionID(id string) (resource, action string, ok bool) {
	i := strings.LastIndex(id, ".")
	if i <= 0 || i == len(id)-1 {
		return "", "", false
	}
	return id[:i], id[i+1:], true
}
