package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionCRUD(t *testing.T) {
	e := newTestEngine(nil)

	require.NoError(t, e.CreatePermission(Permission{ID: "reports.read"}))
	assert.ErrorIs(t, e.CreatePermission(Permission{ID: "reports.read"}), ErrPermissionExists)
	assert.ErrorIs(t, e.CreatePermission(Permission{ID: "no-dot"}), ErrInvalidPermissionID)
	assert.ErrorIs(t, e.CreatePermission(Permission{ID: ".action"}), ErrInvalidPermissionID)
	assert.ErrorIs(t, e.CreatePermission(Permission{ID: "resource."}), ErrInvalidPermissionID)

	p, err := e.GetPermission("reports.read")
	require.NoError(t, err)
	assert.Equal(t, "reports", p.Resource)
	assert.Equal(t, "read", p.Action)
	assert.False(t, p.System)

	require.NoError(t, e.DeletePermission("reports.read"))
	assert.ErrorIs(t, e.DeletePermission("reports.read"), ErrPermissionNotFound)
}

func TestSystemEntitiesAreImmutable(t *testing.T) {
	e := newTestEngine(nil)

	assert.ErrorIs(t, e.DeletePermission("workflows.read"), ErrSystemEntity)
	assert.ErrorIs(t, e.DeleteRole("viewer"), ErrSystemEntity)
	assert.ErrorIs(t, e.UpdateRole(Role{ID: "admin"}), ErrSystemEntity)
}

func TestRoleReferentialValidation(t *testing.T) {
	e := newTestEngine(nil)

	assert.ErrorIs(t, e.CreateRole(Role{ID: "r1", Permissions: []string{"ghost.read"}}), ErrPermissionNotFound)
	assert.ErrorIs(t, e.CreateRole(Role{ID: "r1", Inherits: []string{"ghost"}}), ErrRoleNotFound)

	require.NoError(t, e.CreateRole(Role{ID: "r1", Permissions: []string{"workflows.read"}, Inherits: []string{"viewer"}}))
	assert.ErrorIs(t, e.CreateRole(Role{ID: "r1"}), ErrRoleExists)

	require.NoError(t, e.UpdateRole(Role{ID: "r1", Permissions: []string{"runs.read"}}))
	perms, err := e.RolePermissions("r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"runs.read"}, perms)

	require.NoError(t, e.DeleteRole("r1"))
}

func TestPolicyCRUDAndToggle(t *testing.T) {
	e := newTestEngine(map[string][]string{"u1": {"viewer"}})

	assert.ErrorIs(t, e.CreatePolicy(Policy{
		ID:    "bad",
		Rules: []PolicyRule{{Resource: "x", Actions: []string{"y"}, Effect: "maybe"}},
	}), ErrInvalidEffect)

	deny := Policy{
		ID:       "deny-runs-cancel",
		Priority: 50,
		Active:   true,
		Rules:    []PolicyRule{{Resource: "runs", Actions: []string{"cancel"}, Effect: EffectDeny}},
	}
	require.NoError(t, e.CreatePolicy(deny))
	assert.ErrorIs(t, e.CreatePolicy(deny), ErrPolicyExists)

	req := AccessRequest{UserID: "u1", Resource: "runs", Action: "cancel", TeamID: "team-a"}

	dec := e.CheckAccess(context.Background(), req)
	require.False(t, dec.Allowed)
	assert.Equal(t, "deny-runs-cancel", dec.Reason)

	// Deactivated policies drop out of evaluation.
	require.NoError(t, e.SetPolicyActive("deny-runs-cancel", false))
	dec = e.CheckAccess(context.Background(), req)
	assert.True(t, dec.Allowed)

	require.NoError(t, e.DeletePolicy("deny-runs-cancel"))
	assert.ErrorIs(t, e.DeletePolicy("deny-runs-cancel"), ErrPolicyNotFound)
}

func TestHigherPriorityPolicyWinsFirst(t *testing.T) {
	e := newTestEngine(map[string][]string{"u1": {"viewer"}})

	require.NoError(t, e.CreatePolicy(Policy{
		ID:       "low-deny",
		Priority: 1,
		Active:   true,
		Rules:    []PolicyRule{{Resource: "runs", Actions: []string{"cancel"}, Effect: EffectDeny}},
	}))
	require.NoError(t, e.CreatePolicy(Policy{
		ID:       "high-deny",
		Priority: 200,
		Active:   true,
		Rules:    []PolicyRule{{Resource: "runs", Actions: []string{"cancel"}, Effect: EffectDeny}},
	}))

	dec := e.CheckAccess(context.Background(), AccessRequest{
		UserID: "u1", Resource: "runs", Action: "cancel", TeamID: "team-a",
	})
	require.False(t, dec.Allowed)
	assert.Equal(t, "high-deny", dec.Reason)
}

func TestPolicyRejectsEmptyTimeWindow(t *testing.T) {
	e := newTestEngine(map[string][]string{"u1": {"viewer"}})

	window := func(start, end int) Policy {
		return Policy{
			ID:       "after-hours",
			Priority: 50,
			Active:   true,
			Rules: []PolicyRule{{
				Resource:  "workflows",
				Actions:   []string{Wildcard},
				Effect:    EffectDeny,
				Condition: &Condition{Kind: CondTimeRestriction, StartHour: start, EndHour: end},
			}},
		}
	}

	// A zero-value window would hold for every hour of the day and deny
	// unconditionally.
	assert.ErrorIs(t, e.CreatePolicy(window(0, 0)), ErrInvalidCondition)
	assert.ErrorIs(t, e.CreatePolicy(window(17, 9)), ErrInvalidCondition)
	assert.ErrorIs(t, e.CreatePolicy(window(9, 25)), ErrInvalidCondition)
	assert.ErrorIs(t, e.CreatePolicy(window(-1, 9)), ErrInvalidCondition)

	require.NoError(t, e.CreatePolicy(window(9, 17)))
	assert.ErrorIs(t, e.UpdatePolicy(window(17, 17)), ErrInvalidCondition)
}
