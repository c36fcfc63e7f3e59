package rbac

// CRUD for permissions, roles, and policies. Every mutation validates
// referential existence (a role may only reference permissions and
// inherited roles that already exist) but not acyclicity of the
// inheritance graph.

// CreatePermission registers a new permission. The id must be shaped
// resource.action.
func (e *Engine) CreatePermission(p Permission) error {
	resource, action, ok := splitPermissionID(p.ID)
	if !ok {
		return ErrInvalidPermissionID
	}
	p.Resource, p.Action = resource, action
	p.System = false

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.permissions[p.ID]; exists {
		return ErrPermissionExists
	}
	e.permissions[p.ID] = p
	return nil
}

// DeletePermission removes a non-system permission.
func (e *Engine) DeletePermission(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.permissions[id]
	if !ok {
		return ErrPermissionNotFound
	}
	if p.System {
		return ErrSystemEntity
	}
	delete(e.permissions, id)
	return nil
}

// GetPermission returns a permission by id.
func (e *Engine) GetPermission(id string) (Permission, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.permissions[id]
	if !ok {
		return Permission{}, ErrPermissionNotFound
	}
	return p, nil
}

// CreateRole registers a new role. Referenced permissions and inherited
// roles must already exist.
func (e *Engine) CreateRole(r Role) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.roles[r.ID]; exists {
		return ErrRoleExists
	}
	if err := e.validateRoleRefsLocked(r); err != nil {
		return err
	}
	r.System = false
	e.roles[r.ID] = r
	return nil
}

// UpdateRole replaces a non-system role's definition under the same
// referential checks as creation.
func (e *Engine) UpdateRole(r Role) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	existing, ok := e.roles[r.ID]
	if !ok {
		return ErrRoleNotFound
	}
	if existing.System {
		return ErrSystemEntity
	}
	if err := e.validateRoleRefsLocked(r); err != nil {
		return err
	}
	r.System = false
	e.roles[r.ID] = r
	return nil
}

// DeleteRole removes a non-system role.
func (e *Engine) DeleteRole(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.roles[id]
	if !ok {
		return ErrRoleNotFound
	}
	if r.System {
		return ErrSystemEntity
	}
	delete(e.roles, id)
	return nil
}

// GetRole returns a role by id.
func (e *Engine) GetRole(id string) (Role, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r, ok := e.roles[id]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	return r, nil
}

// CreatePolicy registers a new policy. Rule effects must be allow or deny.
func (e *Engine) CreatePolicy(p Policy) error {
	if err := validatePolicy(p); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.policies[p.ID]; exists {
		return ErrPolicyExists
	}
	e.policies[p.ID] = p
	return nil
}

// UpdatePolicy replaces an existing policy's definition.
func (e *Engine) UpdatePolicy(p Policy) error {
	if err := validatePolicy(p); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.policies[p.ID]; !ok {
		return ErrPolicyNotFound
	}
	e.policies[p.ID] = p
	return nil
}

// DeletePolicy removes a policy.
func (e *Engine) DeletePolicy(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.policies[id]; !ok {
		return ErrPolicyNotFound
	}
	delete(e.policies, id)
	return nil
}

// SetPolicyActive toggles a policy in or out of evaluation.
func (e *Engine) SetPolicyActive(id string, active bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.policies[id]
	if !ok {
		return ErrPolicyNotFound
	}
	p.Active = active
	e.policies[id] = p
	return nil
}

// GetPolicy returns a policy by id.
func (e *Engine) GetPolicy(id string) (Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.policies[id]
	if !ok {
		return Policy{}, ErrPolicyNotFound
	}
	return p, nil
}

func (e *Engine) validateRoleRefsLocked(r Role) error {
	for _, perm := range r.Permissions {
		if _, ok := e.permissions[perm]; !ok {
			return ErrPermissionNotFound
		}
	}
	for _, parent := range r.Inherits {
		if _, ok := e.roles[parent]; !ok {
			return ErrRoleNotFound
		}
	}
	return nil
}

func validatePolicy(p Policy) error {
	for _, rule := range p.Rules {
		if rule.Effect != EffectAllow && rule.Effect != EffectDeny {
			return ErrInvalidEffect
		}
		if err := validateCondition(rule.Condition); err != nil {
			return err
		}
	}
	if p.DefaultEffect != "" && p.DefaultEffect != EffectAllow && p.DefaultEffect != EffectDeny {
		return ErrInvalidEffect
	}
	return nil
}

// validateCondition rejects time restrictions with an empty window. A
// zero-value window (start == end) would otherwise hold for every hour and
// turn a half-built condition into a universal deny.
func validateCondition(c *Condition) error {
	if c == nil || c.Kind != CondTimeRestriction {
		return nil
	}
	if c.StartHour < 0 || c.EndHour > 24 || c.StartHour >= c.EndHour {
		return ErrInvalidCondition
	}
	return nil
}
