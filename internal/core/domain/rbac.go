package domain

import "time"

// Role is a named bundle of authority assignable to users. Roles are never
// deleted in normal operation, only deactivated, so historical assignments
// keep their referent.
type Role struct {
	ID          string
	Name        string
	Description *string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission is an atomic capability named as "resource:action".
type Permission struct {
	ID          string
	Name        string
	Resource    string
	Action      string
	Description *string
	IsActive    bool
}

// ConditionOperator enumerates the predicate operators supported on
// role-permission grants. Unknown operators evaluate to false.
type ConditionOperator string

const (
	OpEquals     ConditionOperator = "equals"
	OpNotEquals  ConditionOperator = "not_equals"
	OpIn         ConditionOperator = "in"
	OpNotIn      ConditionOperator = "not_in"
	OpContains   ConditionOperator = "contains"
	OpStartsWith ConditionOperator = "starts_with"
	OpEndsWith   ConditionOperator = "ends_with"
)

// Condition is a single predicate attached to a role-permission grant. Field
// is a dot-path into the caller-supplied access context; Value is
// operator-dependent (a scalar, or a list for in/not_in).
type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    any               `json:"value"`
}

// RolePermission grants a permission to a role, optionally constrained by
// conditions that must all hold at check time.
type RolePermission struct {
	RoleID         string      `json:"role_id"`
	PermissionID   string      `json:"permission_id"`
	PermissionName string      `json:"permission_name"`
	Granted        bool        `json:"granted"`
	Conditions     []Condition `json:"conditions,omitempty"`
}

// UserRole assigns a role to a user.
type UserRole struct {
	UserID     string
	RoleID     string
	RoleName   string
	AssignedBy string
	AssignedAt time.Time
	ExpiresAt  *time.Time
	IsActive   bool
}

// EffectiveAt reports whether the assignment contributes permissions at the
// given instant: it must be active and not expired.
func (ur UserRole) EffectiveAt(now time.Time) bool {
	if !ur.IsActive {
		return false
	}
	if ur.ExpiresAt != nil && !ur.ExpiresAt.After(now) {
		return false
	}
	return true
}

// UserPermission is a direct grant of a permission to a user, bypassing
// roles. Only rows with Granted true participate in resolution.
type UserPermission struct {
	UserID         string
	PermissionID   string
	PermissionName string
	Granted        bool
	IsActive       bool
}

// GrantSnapshot is the per-user view the resolver evaluates: direct grant
// names plus the conditional grants reachable through effective roles. It is
// also what the decision cache stores.
type GrantSnapshot struct {
	UserID string       `json:"user_id"`
	Direct []string     `json:"direct"`
	Roles  []RoleGrants `json:"roles"`
}

// RoleGrants carries the granted permissions of one effective role.
type RoleGrants struct {
	RoleID   string           `json:"role_id"`
	RoleName string           `json:"role_name"`
	Grants   []RolePermission `json:"grants"`
}
