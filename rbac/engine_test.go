package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDirectory struct {
	roles map[string][]string
	err   error
}

func (d *stubDirectory) UserRoles(_ context.Context, userID, _ string) ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.roles[userID], nil
}

func newTestEngine(roles map[string][]string) *Engine {
	return NewEngine(&stubDirectory{roles: roles}, nil)
}

func TestDirectGrantShortCircuits(t *testing.T) {
	e := newTestEngine(map[string][]string{"u1": {"viewer"}})

	dec := e.CheckAccess(context.Background(), AccessRequest{
		UserID: "u1", Resource: "workflows", Action: "read", TeamID: "team-a",
	})
	require.True(t, dec.Allowed)
	assert.Equal(t, "direct permission granted", dec.Reason)
	assert.Empty(t, dec.AppliedPolicies)
}

func TestAdminBypassesEverything(t *testing.T) {
	e := newTestEngine(map[string][]string{"root": {"admin"}})

	// Even with no team context the admin grant short-circuits before the
	// cross-team deny policy can match.
	dec := e.CheckAccess(context.Background(), AccessRequest{
		UserID: "root", Resource: "workflows", Action: "delete",
	})
	require.True(t, dec.Allowed)
	assert.Equal(t, "direct permission granted", dec.Reason)
}

func TestResourceWildcardGrant(t *testing.T) {
	e := newTestEngine(map[string][]string{"u1": {"ops"}})
	require.NoError(t, e.CreatePermission(Permission{ID: "reports.*", Resource: "reports", Action: Wildcard}))
	require.NoError(t, e.CreateRole(Role{ID: "ops", Permissions: []string{"reports.*"}}))

	dec := e.CheckAccess(context.Background(), AccessRequest{
		UserID: "u1", Resource: "reports", Action: "export", TeamID: "team-a",
	})
	require.True(t, dec.Allowed)
	assert.Equal(t, "direct permission granted", dec.Reason)
}

func TestDenyOverridesOnTeamMismatch(t *testing.T) {
	// viewer has no workflows.write, so the decision falls through to
	// policy evaluation where the cross-team deny matches a request with
	// no team context.
	e := newTestEngine(map[string][]string{"u1": {"viewer"}})

	dec := e.CheckAccess(context.Background(), AccessRequest{
		UserID: "u1", Resource: "workflows", Action: "write",
	})
	require.False(t, dec.Allowed)
	assert.Equal(t, "deny-cross-team-workflow-write", dec.Reason)
	assert.Contains(t, dec.AppliedPolicies, "deny-cross-team-workflow-write")
}

func TestDefaultAllowWhenNoPolicyMatches(t *testing.T) {
	e := newTestEngine(map[string][]string{"u1": {"viewer"}})

	// No direct grant and no matching policy rule: the request is allowed.
	dec := e.CheckAccess(context.Background(), AccessRequest{
		UserID: "u1", Resource: "workflows", Action: "write", TeamID: "team-a",
	})
	require.True(t, dec.Allowed)
	assert.Equal(t, "no applicable policies", dec.Reason)
}

func TestRateLimitedDenyAppliesToEverything(t *testing.T) {
	e := newTestEngine(map[string][]string{"u1": {"viewer"}})

	dec := e.CheckAccess(context.Background(), AccessRequest{
		UserID:   "u1",
		Resource: "anything",
		Action:   "at-all",
		TeamID:   "team-a",
		Context:  map[string]string{RateLimitedContextKey: "true"},
	})
	require.False(t, dec.Allowed)
	assert.Equal(t, "deny-when-rate-limited", dec.Reason)
}

func TestAllowRulesRecordedButNeverGate(t *testing.T) {
	e := newTestEngine(map[string][]string{"u1": {"viewer"}})

	dec := e.CheckAccess(context.Background(), AccessRequest{
		UserID: "u1", Resource: "audit", Action: "read", TeamID: "team-a",
	})
	require.True(t, dec.Allowed)
	assert.Equal(t, "no applicable policies", dec.Reason)
	assert.Equal(t, []string{"audit-read-allow"}, dec.AppliedPolicies)
}

func TestDirectoryFailureDenies(t *testing.T) {
	e := NewEngine(&stubDirectory{err: errors.New("directory down")}, nil)

	dec := e.CheckAccess(context.Background(), AccessRequest{
		UserID: "u1", Resource: "workflows", Action: "read",
	})
	require.False(t, dec.Allowed)
	assert.Equal(t, "directory lookup failed", dec.Reason)
}

func TestDecisionHookReceivesEveryDecision(t *testing.T) {
	var got []AccessDecision
	hook := func(_ context.Context, _ AccessRequest, dec AccessDecision) {
		got = append(got, dec)
	}
	e := NewEngine(&stubDirectory{roles: map[string][]string{"u1": {"viewer"}}}, hook)

	e.CheckAccess(context.Background(), AccessRequest{UserID: "u1", Resource: "workflows", Action: "read"})
	e.CheckAccess(context.Background(), AccessRequest{UserID: "u1", Resource: "workflows", Action: "write"})

	require.Len(t, got, 2)
	assert.True(t, got[0].Allowed)
	assert.False(t, got[1].Allowed)
}

func TestRolePermissionsExpandsInheritance(t *testing.T) {
	e := newTestEngine(nil)

	perms, err := e.RolePermissions("team_admin")
	require.NoError(t, err)

	// team_admin -> editor -> viewer, deduplicated and sorted.
	assert.Equal(t, []string{
		"runs.cancel",
		"runs.read",
		"teams.manage",
		"teams.read",
		"users.read",
		"workflows.delete",
		"workflows.execute",
		"workflows.read",
		"workflows.write",
	}, perms)

	_, err = e.RolePermissions("no-such-role")
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestEffectivePermissionsUnionsRoles(t *testing.T) {
	e := newTestEngine(map[string][]string{"u1": {"viewer", "admin"}})

	perms, err := e.EffectivePermissions(context.Background(), "u1", "team-a")
	require.NoError(t, err)
	assert.Contains(t, perms, "workflows.read")
	assert.Contains(t, perms, AdminPermission)
}

func TestHasPermission(t *testing.T) {
	e := newTestEngine(map[string][]string{
		"u1":   {"viewer"},
		"root": {"admin"},
	})
	ctx := context.Background()

	assert.True(t, e.HasPermission(ctx, "u1", "team-a", "workflows.read"))
	assert.False(t, e.HasPermission(ctx, "u1", "team-a", "workflows.write"))
	assert.True(t, e.HasPermission(ctx, "root", "", "anything.whatever"))
	assert.False(t, e.HasPermission(ctx, "unknown", "", "workflows.read"))
}

func TestConditionEvaluation(t *testing.T) {
	req := AccessRequest{TeamID: "team-a", IP: "10.1.2.3"}

	t.Run("team mismatch", func(t *testing.T) {
		c := &Condition{Kind: CondTeamMismatch, Teams: []string{"team-a"}}
		assert.False(t, c.evaluate(req))

		c.Teams = []string{"team-b"}
		assert.True(t, c.evaluate(req))
	})

	t.Run("empty team list means no team context", func(t *testing.T) {
		c := &Condition{Kind: CondTeamMismatch}
		assert.False(t, c.evaluate(req))
		assert.True(t, c.evaluate(AccessRequest{}))
	})

	t.Run("ip whitelist", func(t *testing.T) {
		c := &Condition{Kind: CondIPWhitelist, CIDRs: []string{"10.1.0.0/16"}}
		assert.False(t, c.evaluate(req))

		c.CIDRs = []string{"192.168.0.0/16", "10.1.2.4"}
		assert.True(t, c.evaluate(req))

		// Unparseable request IP falls outside every list.
		assert.True(t, c.evaluate(AccessRequest{IP: "not-an-ip"}))
	})

	t.Run("nil condition always applies", func(t *testing.T) {
		var c *Condition
		assert.True(t, c.evaluate(req))
	})
}
