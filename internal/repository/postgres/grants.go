package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
	"github.com/BuggPlayer/homeservice-iam/internal/core/port"
)

// GrantRepository persists direct grants, role grants, and user-role
// assignments over PostgreSQL.
type GrantRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewGrantRepository constructs a PostgreSQL-backed grant repository.
func NewGrantRepository(pool *pgxpool.Pool) *GrantRepository {
	return &GrantRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository configured to execute within the provided transaction.
func (r *GrantRepository) WithTx(tx pgx.Tx) *GrantRepository {
	if tx == nil {
		return r
	}
	return &GrantRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// ListDirectGrants returns the user's active direct grants with granted true.
// Rows with granted false are never fetched and do not suppress role grants.
func (r *GrantRepository) ListDirectGrants(ctx context.Context, userID string) ([]domain.UserPermission, error) {
	stmt, args, err := r.builder.Select(
		"up.user_id",
		"up.permission_id",
		"p.name",
		"up.granted",
		"up.is_active",
	).
		From("user_permissions up").
		Join("permissions p ON p.id = up.permission_id").
		Where(squirrel.Eq{"up.user_id": userID, "up.granted": true, "up.is_active": true}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build direct grants sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query direct grants: %w", err)
	}
	defer rows.Close()

	grants := make([]domain.UserPermission, 0)
	for rows.Next() {
		var grant domain.UserPermission
		if err := rows.Scan(&grant.UserID, &grant.PermissionID, &grant.PermissionName, &grant.Granted, &grant.IsActive); err != nil {
			return nil, fmt.Errorf("scan direct grant: %w", err)
		}
		grants = append(grants, grant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate direct grants: %w", err)
	}

	return grants, nil
}

// UpsertDirectGrant writes a direct grant keyed by (user, permission).
func (r *GrantRepository) UpsertDirectGrant(ctx context.Context, grant domain.UserPermission) error {
	stmt, args, err := r.builder.Insert("user_permissions").
		Columns("user_id", "permission_id", "granted", "is_active").
		Values(grant.UserID, grant.PermissionID, grant.Granted, grant.IsActive).
		Suffix("ON CONFLICT (user_id, permission_id) DO UPDATE SET granted = EXCLUDED.granted, is_active = EXCLUDED.is_active").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert direct grant sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert direct grant: %w", err)
	}

	return nil
}

// ListRoleGrants returns the grants attached to a role with their conditions.
func (r *GrantRepository) ListRoleGrants(ctx context.Context, roleID string) ([]domain.RolePermission, error) {
	stmt, args, err := r.builder.Select(
		"rp.role_id",
		"rp.permission_id",
		"p.name",
		"rp.granted",
		"rp.conditions",
	).
		From("role_permissions rp").
		Join("permissions p ON p.id = rp.permission_id").
		Where(squirrel.Eq{"rp.role_id": roleID}).
		OrderBy("p.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build role grants sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query role grants: %w", err)
	}
	defer rows.Close()

	grants := make([]domain.RolePermission, 0)
	for rows.Next() {
		var (
			grant      domain.RolePermission
			conditions []byte
		)
		if err := rows.Scan(&grant.RoleID, &grant.PermissionID, &grant.PermissionName, &grant.Granted, &conditions); err != nil {
			return nil, fmt.Errorf("scan role grant: %w", err)
		}
		if len(conditions) > 0 {
			if err := json.Unmarshal(conditions, &grant.Conditions); err != nil {
				return nil, fmt.Errorf("decode grant conditions: %w", err)
			}
		}
		grants = append(grants, grant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role grants: %w", err)
	}

	return grants, nil
}

// UpsertRoleGrant writes a role grant in place, unique per (role, permission).
func (r *GrantRepository) UpsertRoleGrant(ctx context.Context, grant domain.RolePermission) error {
	var conditions any
	if len(grant.Conditions) > 0 {
		encoded, err := json.Marshal(grant.Conditions)
		if err != nil {
			return fmt.Errorf("encode grant conditions: %w", err)
		}
		conditions = encoded
	}

	stmt, args, err := r.builder.Insert("role_permissions").
		Columns("role_id", "permission_id", "granted", "conditions").
		Values(grant.RoleID, grant.PermissionID, grant.Granted, conditions).
		Suffix("ON CONFLICT (role_id, permission_id) DO UPDATE SET granted = EXCLUDED.granted, conditions = EXCLUDED.conditions").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert role grant sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert role grant: %w", err)
	}

	return nil
}

// ListEffectiveRoles returns the user's active, unexpired role assignments.
// Expiry is filtered here so cached snapshots are the only staleness source.
func (r *GrantRepository) ListEffectiveRoles(ctx context.Context, userID string) ([]domain.UserRole, error) {
	stmt, args, err := r.builder.Select(
		"ur.user_id",
		"ur.role_id",
		"r.name",
		"ur.assigned_by",
		"ur.assigned_at",
		"ur.expires_at",
		"ur.is_active",
	).
		From("user_roles ur").
		Join("roles r ON r.id = ur.role_id").
		Where(squirrel.Eq{"ur.user_id": userID, "ur.is_active": true, "r.is_active": true}).
		Where(squirrel.Or{
			squirrel.Eq{"ur.expires_at": nil},
			squirrel.Expr("ur.expires_at > NOW()"),
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build effective roles sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query effective roles: %w", err)
	}
	defer rows.Close()

	assignments := make([]domain.UserRole, 0)
	for rows.Next() {
		var assignment domain.UserRole
		if err := rows.Scan(
			&assignment.UserID,
			&assignment.RoleID,
			&assignment.RoleName,
			&assignment.AssignedBy,
			&assignment.AssignedAt,
			&assignment.ExpiresAt,
			&assignment.IsActive,
		); err != nil {
			return nil, fmt.Errorf("scan effective role: %w", err)
		}
		assignments = append(assignments, assignment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate effective roles: %w", err)
	}

	return assignments, nil
}

// AssignRole upserts a user-role assignment, reactivating a revoked row and
// refreshing its metadata.
func (r *GrantRepository) AssignRole(ctx context.Context, assignment domain.UserRole) error {
	stmt, args, err := r.builder.Insert("user_roles").
		Columns("user_id", "role_id", "assigned_by", "assigned_at", "expires_at", "is_active").
		Values(assignment.UserID, assignment.RoleID, assignment.AssignedBy, assignment.AssignedAt, assignment.ExpiresAt, assignment.IsActive).
		Suffix("ON CONFLICT (user_id, role_id) DO UPDATE SET assigned_by = EXCLUDED.assigned_by, assigned_at = EXCLUDED.assigned_at, expires_at = EXCLUDED.expires_at, is_active = EXCLUDED.is_active").
		ToSql()
	if err != nil {
		return fmt.Errorf("build assign role sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}

	return nil
}

// RevokeRole deactivates a user-role assignment without deleting it.
func (r *GrantRepository) RevokeRole(ctx context.Context, userID, roleID string) error {
	stmt, args, err := r.builder.Update("user_roles").
		Set("is_active", false).
		Where(squirrel.Eq{"user_id": userID, "role_id": roleID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke role sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}

	return nil
}

var _ port.GrantRepository = (*GrantRepository)(nil)
