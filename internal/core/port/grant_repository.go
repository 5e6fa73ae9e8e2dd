package port

import (
	"context"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
)

// GrantRepository persists the three grant paths the resolver reads: direct
// user grants, role-permission grants, and user-role assignments.
type GrantRepository interface {
	// ListDirectGrants returns the user's active direct grants with granted
	// true. Revoked or inactive rows are never fetched.
	ListDirectGrants(ctx context.Context, userID string) ([]domain.UserPermission, error)
	UpsertDirectGrant(ctx context.Context, grant domain.UserPermission) error

	// ListRoleGrants returns the grants attached to a role, conditions included.
	ListRoleGrants(ctx context.Context, roleID string) ([]domain.RolePermission, error)
	// UpsertRoleGrant writes a role-permission grant in place, unique per
	// (role, permission) pair.
	UpsertRoleGrant(ctx context.Context, grant domain.RolePermission) error

	// ListEffectiveRoles returns the user's active, non-expired role
	// assignments.
	ListEffectiveRoles(ctx context.Context, userID string) ([]domain.UserRole, error)
	// AssignRole upserts a user-role assignment, reactivating a previously
	// revoked row.
	AssignRole(ctx context.Context, assignment domain.UserRole) error
	RevokeRole(ctx context.Context, userID, roleID string) error
}
