package postgres

import (
	"context"
	"testing"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
)

func newMockGrantRepo(t *testing.T) (*GrantRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	repo := &GrantRepository{
		exec:    mock,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	return repo, mock
}

func TestGrantRepository_ListDirectGrantsFiltersGrantedActive(t *testing.T) {
	repo, mock := newMockGrantRepo(t)

	rows := pgxmock.NewRows([]string{"user_id", "permission_id", "name", "granted", "is_active"}).
		AddRow("user-1", "perm-1", "booking:read", true, true)

	mock.ExpectQuery(`SELECT .*FROM user_permissions up`).
		WithArgs(true, true, "user-1").
		WillReturnRows(rows)

	grants, err := repo.ListDirectGrants(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListDirectGrants returned error: %v", err)
	}
	if len(grants) != 1 || grants[0].PermissionName != "booking:read" {
		t.Fatalf("unexpected grants %+v", grants)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGrantRepository_ListRoleGrantsDecodesConditions(t *testing.T) {
	repo, mock := newMockGrantRepo(t)

	conditions := []byte(`[{"field":"user_type","operator":"equals","value":"provider"}]`)
	rows := pgxmock.NewRows([]string{"role_id", "permission_id", "name", "granted", "conditions"}).
		AddRow("role-1", "perm-1", "booking:update_status", true, conditions).
		AddRow("role-1", "perm-2", "payment:refund", false, nil)

	mock.ExpectQuery(`SELECT .*FROM role_permissions rp`).
		WithArgs("role-1").
		WillReturnRows(rows)

	grants, err := repo.ListRoleGrants(context.Background(), "role-1")
	if err != nil {
		t.Fatalf("ListRoleGrants returned error: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("expected two grants, got %d", len(grants))
	}
	if len(grants[0].Conditions) != 1 {
		t.Fatalf("expected one decoded condition, got %+v", grants[0].Conditions)
	}
	cond := grants[0].Conditions[0]
	if cond.Field != "user_type" || cond.Operator != domain.OpEquals || cond.Value != "provider" {
		t.Fatalf("unexpected condition %+v", cond)
	}
	if grants[1].Conditions != nil {
		t.Fatalf("expected no conditions on second grant, got %+v", grants[1].Conditions)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGrantRepository_ListEffectiveRolesFiltersActive(t *testing.T) {
	repo, mock := newMockGrantRepo(t)

	assignedAt := time.Now().UTC().Add(-time.Hour)
	rows := pgxmock.NewRows([]string{"user_id", "role_id", "name", "assigned_by", "assigned_at", "expires_at", "is_active"}).
		AddRow("user-1", "role-1", "provider", "admin-1", assignedAt, nil, true)

	mock.ExpectQuery(`SELECT .*FROM user_roles ur`).
		WithArgs(true, true, "user-1").
		WillReturnRows(rows)

	assignments, err := repo.ListEffectiveRoles(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListEffectiveRoles returned error: %v", err)
	}
	if len(assignments) != 1 || assignments[0].RoleName != "provider" {
		t.Fatalf("unexpected assignments %+v", assignments)
	}
	if assignments[0].ExpiresAt != nil {
		t.Fatalf("expected nil expiry, got %v", assignments[0].ExpiresAt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGrantRepository_AssignRoleUpserts(t *testing.T) {
	repo, mock := newMockGrantRepo(t)

	assignedAt := time.Now().UTC()
	assignment := domain.UserRole{
		UserID:     "user-1",
		RoleID:     "role-1",
		AssignedBy: "admin-1",
		AssignedAt: assignedAt,
		IsActive:   true,
	}

	mock.ExpectExec(`INSERT INTO user_roles .*ON CONFLICT \(user_id, role_id\) DO UPDATE`).
		WithArgs("user-1", "role-1", "admin-1", assignedAt, (*time.Time)(nil), true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.AssignRole(context.Background(), assignment); err != nil {
		t.Fatalf("AssignRole returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGrantRepository_RevokeRoleDeactivates(t *testing.T) {
	repo, mock := newMockGrantRepo(t)

	mock.ExpectExec(`UPDATE user_roles SET is_active`).
		WithArgs(false, "role-1", "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.RevokeRole(context.Background(), "user-1", "role-1"); err != nil {
		t.Fatalf("RevokeRole returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
