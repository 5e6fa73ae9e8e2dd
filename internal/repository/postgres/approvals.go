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

// ApprovalRepository persists user approval requests over PostgreSQL.
type ApprovalRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewApprovalRepository constructs a PostgreSQL-backed approval repository.
func NewApprovalRepository(pool *pgxpool.Pool) *ApprovalRepository {
	return &ApprovalRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository configured to execute within the provided transaction.
func (r *ApprovalRepository) WithTx(tx pgx.Tx) *ApprovalRepository {
	if tx == nil {
		return r
	}
	return &ApprovalRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a pending approval request.
func (r *ApprovalRepository) Create(ctx context.Context, approval domain.UserApproval) error {
	stmt, args, err := r.builder.Insert("user_approvals").
		Columns("id", "user_id", "requested_role", "status", "requested_by", "notes", "requested_at").
		Values(approval.ID, approval.UserID, approval.RequestedRole, approval.Status, approval.RequestedBy, approval.Notes, approval.RequestedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert approval sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}

	return nil
}

// GetByID retrieves an approval by its identifier.
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*domain.UserApproval, error) {
	stmt, args, err := r.builder.Select(
		"id", "user_id", "requested_role", "status", "requested_by", "resolved_by", "notes",
		"requested_at", "approved_at", "rejected_at",
	).
		From("user_approvals").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select approval sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	approval, err := scanApprovalRow(func(dest ...any) error { return row.Scan(dest...) })
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan approval: %w", err)
	}

	return approval, nil
}

// MarkApproved conditionally transitions the approval to approved. The WHERE
// on status = pending is the concurrency guard: a concurrent resolver that
// lost the race matches zero rows and gets repository.ErrNotFound.
func (r *ApprovalRepository) MarkApproved(ctx context.Context, approvalID, approvedBy string, notes *string) (*domain.UserApproval, error) {
	query := r.builder.Update("user_approvals").
		Set("status", domain.ApprovalApproved).
		Set("resolved_by", approvedBy).
		Set("approved_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": approvalID, "status": domain.ApprovalPending})

	if notes != nil {
		query = query.Set("notes", *notes)
	}

	stmt, args, err := query.
		Suffix("RETURNING id, user_id, requested_role, status, requested_by, resolved_by, notes, requested_at, approved_at, rejected_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build approve sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	approval, err := scanApprovalRow(func(dest ...any) error { return row.Scan(dest...) })
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan approved row: %w", err)
	}

	return approval, nil
}

// MarkRejected is the symmetric conditional transition to rejected; the
// reason is stored in notes.
func (r *ApprovalRepository) MarkRejected(ctx context.Context, approvalID, rejectedBy, reason string) (*domain.UserApproval, error) {
	stmt, args, err := r.builder.Update("user_approvals").
		Set("status", domain.ApprovalRejected).
		Set("resolved_by", rejectedBy).
		Set("notes", reason).
		Set("rejected_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": approvalID, "status": domain.ApprovalPending}).
		Suffix("RETURNING id, user_id, requested_role, status, requested_by, resolved_by, notes, requested_at, approved_at, rejected_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build reject sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	approval, err := scanApprovalRow(func(dest ...any) error { return row.Scan(dest...) })
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan rejected row: %w", err)
	}

	return approval, nil
}

// ListPending returns pending approvals newest first, joined against users
// for requester and target display fields.
func (r *ApprovalRepository) ListPending(ctx context.Context) ([]domain.PendingApproval, error) {
	stmt, args, err := r.builder.Select(
		"ua.id", "ua.user_id", "ua.requested_role", "ua.status", "ua.requested_by",
		"ua.resolved_by", "ua.notes", "ua.requested_at", "ua.approved_at", "ua.rejected_at",
		"target.name", "target.email", "requester.name",
	).
		From("user_approvals ua").
		Join("users target ON target.id = ua.user_id").
		LeftJoin("users requester ON requester.id = ua.requested_by").
		Where(squirrel.Eq{"ua.status": domain.ApprovalPending}).
		OrderBy("ua.requested_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list pending sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending approvals: %w", err)
	}
	defer rows.Close()

	pending := make([]domain.PendingApproval, 0)
	for rows.Next() {
		var (
			item          domain.PendingApproval
			resolvedBy    sql.NullString
			notes         sql.NullString
			approvedAt    sql.NullTime
			rejectedAt    sql.NullTime
			requesterName sql.NullString
		)
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.RequestedRole,
			&item.Status,
			&item.RequestedBy,
			&resolvedBy,
			&notes,
			&item.RequestedAt,
			&approvedAt,
			&rejectedAt,
			&item.TargetName,
			&item.TargetEmail,
			&requesterName,
		); err != nil {
			return nil, fmt.Errorf("scan pending approval: %w", err)
		}

		if resolvedBy.Valid {
			value := resolvedBy.String
			item.ResolvedBy = &value
		}
		if notes.Valid {
			value := notes.String
			item.Notes = &value
		}
		if approvedAt.Valid {
			value := approvedAt.Time
			item.ApprovedAt = &value
		}
		if rejectedAt.Valid {
			value := rejectedAt.Time
			item.RejectedAt = &value
		}
		if requesterName.Valid {
			item.RequesterName = requesterName.String
		}

		pending = append(pending, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending approvals: %w", err)
	}

	return pending, nil
}

func scanApprovalRow(scan func(dest ...any) error) (*domain.UserApproval, error) {
	var (
		approval   domain.UserApproval
		resolvedBy sql.NullString
		notes      sql.NullString
		approvedAt sql.NullTime
		rejectedAt sql.NullTime
	)

	if err := scan(
		&approval.ID,
		&approval.UserID,
		&approval.RequestedRole,
		&approval.Status,
		&approval.RequestedBy,
		&resolvedBy,
		&notes,
		&approval.RequestedAt,
		&approvedAt,
		&rejectedAt,
	); err != nil {
		return nil, err
	}

	if resolvedBy.Valid {
		value := resolvedBy.String
		approval.ResolvedBy = &value
	}
	if notes.Valid {
		value := notes.String
		approval.Notes = &value
	}
	if approvedAt.Valid {
		value := approvedAt.Time
		approval.ApprovedAt = &value
	}
	if rejectedAt.Valid {
		value := rejectedAt.Time
		approval.RejectedAt = &value
	}

	return &approval, nil
}

var _ port.ApprovalRepository = (*ApprovalRepository)(nil)
