package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
	"github.com/BuggPlayer/homeservice-iam/internal/core/port"
	"github.com/BuggPlayer/homeservice-iam/internal/repository"
)

// UserRepository reads marketplace users and writes approval status fields.
type UserRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// GetByID retrieves a user row.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	stmt, args, err := r.builder.Select(
		"id", "name", "email", "user_type", "approval_status", "approved_by", "approved_at", "is_active", "created_at",
	).
		From("users").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		user       domain.User
		approvedBy sql.NullString
		approvedAt sql.NullTime
	)

	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.UserType,
		&user.ApprovalStatus,
		&approvedBy,
		&approvedAt,
		&user.IsActive,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if approvedBy.Valid {
		value := approvedBy.String
		user.ApprovedBy = &value
	}
	if approvedAt.Valid {
		value := approvedAt.Time
		user.ApprovedAt = &value
	}

	return &user, nil
}

// SetApprovalStatus records the outcome of the approval workflow on the user
// row itself.
func (r *UserRepository) SetApprovalStatus(ctx context.Context, userID string, status domain.ApprovalStatus, resolvedBy string, resolvedAt time.Time) error {
	stmt, args, err := r.builder.Update("users").
		Set("approval_status", status).
		Set("approved_by", resolvedBy).
		Set("approved_at", resolvedAt).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update approval status sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update approval status: %w", err)
	}

	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.UserRepository = (*UserRepository)(nil)
