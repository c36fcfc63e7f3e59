package rbac

import "errors"

var (
	// ErrPermissionExists / ErrRoleExists / ErrPolicyExists reject
	// duplicate ids on create.
	ErrPermissionExists = errors.New("permission already exists")
	ErrRoleExists       = errors.New("role already exists")
	ErrPolicyExists     = errors.New("policy already exists")

	// ErrPermissionNotFound / ErrRoleNotFound / ErrPolicyNotFound reject
	// dangling references and updates of missing entities.
	ErrPermissionNotFound = errors.New("permission not found")
	ErrRoleNotFound       = errors.New("role not found")
	ErrPolicyNotFound     = errors.New("policy not found")

	// ErrSystemEntity rejects mutation of bootstrapped system entities.
	ErrSystemEntity = errors.New("system entity is immutable")

	// ErrInvalidPermissionID rejects ids not shaped resource.action.
	ErrInvalidPermissionID = errors.New("permission id must be resource.action")

	// ErrInvalidEffect rejects rule effects outside allow/deny.
	ErrInvalidEffect = errors.New("policy effect must be allow or deny")

	// ErrInvalidCondition rejects malformed rule conditions, such as a time
	// restriction whose window is empty.
	ErrInvalidCondition = errors.New("invalid rule condition")
)
