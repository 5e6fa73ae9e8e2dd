package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
	"github.com/BuggPlayer/homeservice-iam/internal/core/port"
	"github.com/BuggPlayer/homeservice-iam/internal/repository"
)

// PermissionRepository implements catalog persistence over PostgreSQL.
type PermissionRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPermissionRepository constructs a permission repository instance.
func NewPermissionRepository(pool *pgxpool.Pool) *PermissionRepository {
	return &PermissionRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository configured to execute within the provided transaction.
func (r *PermissionRepository) WithTx(tx pgx.Tx) *PermissionRepository {
	if tx == nil {
		return r
	}
	return &PermissionRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new permission row. Names are unique and immutable.
func (r *PermissionRepository) Create(ctx context.Context, permission domain.Permission) error {
	stmt, args, err := r.builder.Insert("permissions").
		Columns("id", "name", "resource", "action", "description", "is_active").
		Values(permission.ID, permission.Name, permission.Resource, permission.Action, permission.Description, permission.IsActive).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert permission sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert permission: %w", err)
	}

	return nil
}

// Upsert inserts the permission or refreshes its description and active flag,
// keyed by the unique name. Used by the catalog bootstrap.
func (r *PermissionRepository) Upsert(ctx context.Context, permission domain.Permission) error {
	stmt, args, err := r.builder.Insert("permissions").
		Columns("id", "name", "resource", "action", "description", "is_active").
		Values(permission.ID, permission.Name, permission.Resource, permission.Action, permission.Description, permission.IsActive).
		Suffix("ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, is_active = EXCLUDED.is_active").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert permission sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert permission: %w", err)
	}

	return nil
}

// GetByID retrieves a permission by its identifier.
func (r *PermissionRepository) GetByID(ctx context.Context, id string) (*domain.Permission, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id}, "id")
}

// GetByName retrieves a permission by its unique canonical name.
func (r *PermissionRepository) GetByName(ctx context.Context, name string) (*domain.Permission, error) {
	return r.getBy(ctx, squirrel.Eq{"name": name}, "name")
}

func (r *PermissionRepository) getBy(ctx context.Context, where squirrel.Eq, label string) (*domain.Permission, error) {
	stmt, args, err := r.builder.Select("id", "name", "resource", "action", "description", "is_active").
		From("permissions").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select permission by %s sql: %w", label, err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	permission, err := scanPermissionRow(func(dest ...any) error { return row.Scan(dest...) })
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan permission by %s: %w", label, err)
	}

	return permission, nil
}

// List returns the catalog sorted by resource and action.
func (r *PermissionRepository) List(ctx context.Context) ([]domain.Permission, error) {
	stmt, args, err := r.builder.Select("id", "name", "resource", "action", "description", "is_active").
		From("permissions").
		OrderBy("resource ASC", "action ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list permissions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", err)
	}
	defer rows.Close()

	permissions := make([]domain.Permission, 0)
	for rows.Next() {
		permission, err := scanPermissionRow(func(dest ...any) error { return rows.Scan(dest...) })
		if err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		permissions = append(permissions, *permission)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}

	return permissions, nil
}

func scanPermissionRow(scan func(dest ...any) error) (*domain.Permission, error) {
	var (
		permission  domain.Permission
		description sql.NullString
	)

	if err := scan(
		&permission.ID,
		&permission.Name,
		&permission.Resource,
		&permission.Action,
		&description,
		&permission.IsActive,
	); err != nil {
		return nil, err
	}

	if description.Valid {
		desc := description.String
		permission.Description = &desc
	}

	return &permission, nil
}

var _ port.PermissionRepository = (*PermissionRepository)(nil)
