package rbac

// Bootstrapped system entities. These are documented constants, not
// configuration: every engine instance starts with the same baseline so
// authorization behavior is identical across deployments.

func systemPermissions() []Permission {
	ids := []string{
		"workflows.read",
		"workflows.write",
		"workflows.execute",
		"workflows.delete",
		"runs.read",
		"runs.cancel",
		"users.read",
		"users.write",
		"teams.read",
		"teams.manage",
		"audit.read",
		AdminPermission,
	}

	perms := make([]Permission, 0, len(ids))
	for _, id := range ids {
		resource, action, _ := splitPermissionID(id)
		perms = append(perms, Permission{
			ID:       id,
			Resource: resource,
			Action:   action,
			System:   true,
		})
	}
	return perms
}

func systemRoles() []Role {
	return []Role{
		{
			ID:          "viewer",
			Permissions: []string{"workflows.read", "runs.read", "teams.read"},
			System:      true,
		},
		{
			ID:          "editor",
			Permissions: []string{"workflows.write", "workflows.execute", "runs.cancel"},
			Inherits:    []string{"viewer"},
			System:      true,
		},
		{
			ID:          "team_admin",
			Permissions: []string{"workflows.delete", "users.read", "teams.manage"},
			Inherits:    []string{"editor"},
			System:      true,
		},
		{
			ID:          "admin",
			Permissions: []string{AdminPermission},
			System:      true,
		},
	}
}

func systemPolicies() []Policy {
	return []Policy{
		{
			ID:       "deny-cross-team-workflow-write",
			Priority: 100,
			Active:   true,
			Rules: []PolicyRule{
				{
					Resource:  "workflows",
					Actions:   []string{"write", "execute", "delete"},
					Effect:    EffectDeny,
					Condition: &Condition{Kind: CondTeamMismatch},
				},
			},
			DefaultEffect: EffectAllow,
		},
		{
			ID:       "deny-when-rate-limited",
			Priority: 90,
			Active:   true,
			Rules: []PolicyRule{
				{
					Resource:  Wildcard,
					Actions:   []string{Wildcard},
					Effect:    EffectDeny,
					Condition: &Condition{Kind: CondRateLimitExceeded},
				},
			},
			DefaultEffect: EffectAllow,
		},
		{
			ID:       "audit-read-allow",
			Priority: 10,
			Active:   true,
			Rules: []PolicyRule{
				{
					Resource: "audit",
					Actions:  []string{"read"},
					Effect:   EffectAllow,
				},
			},
			DefaultEffect: EffectAllow,
		},
	}
}
