package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
	"github.com/BuggPlayer/homeservice-iam/internal/repository"
)

type grantRepoMock struct {
	direct      map[string][]domain.UserPermission
	assignments map[string][]domain.UserRole
	roleGrants  map[string][]domain.RolePermission

	directErr     error
	roleGrantsErr error

	directCalls int
}

func (m *grantRepoMock) ListDirectGrants(_ context.Context, userID string) ([]domain.UserPermission, error) {
	m.directCalls++
	if m.directErr != nil {
		return nil, m.directErr
	}
	return m.direct[userID], nil
}

func (m *grantRepoMock) UpsertDirectGrant(context.Context, domain.UserPermission) error {
	return errors.New("unexpected call: UpsertDirectGrant")
}

func (m *grantRepoMock) ListRoleGrants(_ context.Context, roleID string) ([]domain.RolePermission, error) {
	if m.roleGrantsErr != nil {
		return nil, m.roleGrantsErr
	}
	return m.roleGrants[roleID], nil
}

func (m *grantRepoMock) UpsertRoleGrant(context.Context, domain.RolePermission) error {
	return errors.New("unexpected call: UpsertRoleGrant")
}

func (m *grantRepoMock) ListEffectiveRoles(_ context.Context, userID string) ([]domain.UserRole, error) {
	return m.assignments[userID], nil
}

func (m *grantRepoMock) AssignRole(context.Context, domain.UserRole) error {
	return errors.New("unexpected call: AssignRole")
}

func (m *grantRepoMock) RevokeRole(context.Context, string, string) error {
	return errors.New("unexpected call: RevokeRole")
}

type decisionCacheMock struct {
	snapshots map[string]domain.GrantSnapshot
	getErr    error
	setCalls  int
	hits      int
}

func (m *decisionCacheMock) GetGrantSnapshot(_ context.Context, userID string) (*domain.GrantSnapshot, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	snapshot, ok := m.snapshots[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	m.hits++
	copy := snapshot
	return &copy, nil
}

func (m *decisionCacheMock) SetGrantSnapshot(_ context.Context, snapshot domain.GrantSnapshot) error {
	m.setCalls++
	if m.snapshots == nil {
		m.snapshots = make(map[string]domain.GrantSnapshot)
	}
	m.snapshots[snapshot.UserID] = snapshot
	return nil
}

func (m *decisionCacheMock) Invalidate(_ context.Context, userID string) error {
	delete(m.snapshots, userID)
	return nil
}

func newProviderGrants() *grantRepoMock {
	return &grantRepoMock{
		direct: map[string][]domain.UserPermission{},
		assignments: map[string][]domain.UserRole{
			"user-1": {{
				UserID:     "user-1",
				RoleID:     "role-provider",
				RoleName:   "provider",
				AssignedAt: time.Now().Add(-time.Hour),
				IsActive:   true,
			}},
		},
		roleGrants: map[string][]domain.RolePermission{
			"role-provider": {
				{
					RoleID:         "role-provider",
					PermissionName: "booking:update_status",
					Granted:        true,
					Conditions: []domain.Condition{
						{Field: domain.ContextUserType, Operator: domain.OpEquals, Value: "provider"},
					},
				},
				{
					RoleID:         "role-provider",
					PermissionName: "payment:refund",
					Granted:        false,
				},
			},
		},
	}
}

func TestCheckPermissionDirectGrantShortCircuits(t *testing.T) {
	grants := newProviderGrants()
	grants.direct["user-1"] = []domain.UserPermission{
		{UserID: "user-1", PermissionName: "booking:update_status", Granted: true},
	}

	service := NewAccessService(grants)

	// A direct grant must win even when the role grant's conditions fail.
	decision := service.CheckPermission(context.Background(), "user-1", "booking:update_status", domain.AccessContext{
		domain.ContextUserType: "customer",
	})
	if !decision.Allowed {
		t.Fatalf("expected direct grant to allow, got reason %q", decision.Reason)
	}
}

func TestCheckPermissionRoleGrantConditions(t *testing.T) {
	service := NewAccessService(newProviderGrants())

	decision := service.CheckPermission(context.Background(), "user-1", "booking:update_status", domain.AccessContext{
		domain.ContextUserType: "provider",
	})
	if !decision.Allowed {
		t.Fatalf("expected conditional role grant to allow, got reason %q", decision.Reason)
	}

	decision = service.CheckPermission(context.Background(), "user-1", "booking:update_status", domain.AccessContext{
		domain.ContextUserType: "customer",
	})
	if decision.Allowed {
		t.Fatal("expected failing condition to deny")
	}
	if decision.Reason != "User does not have permission: booking:update_status" {
		t.Fatalf("unexpected denial reason %q", decision.Reason)
	}
}

func TestCheckPermissionExpiredAssignmentDenies(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Minute)

	grants := newProviderGrants()
	grants.assignments["user-1"][0].ExpiresAt = &expired

	service := NewAccessService(grants).WithNow(func() time.Time { return now })

	decision := service.CheckPermission(context.Background(), "user-1", "booking:update_status", domain.AccessContext{
		domain.ContextUserType: "provider",
	})
	if decision.Allowed {
		t.Fatal("expected expired assignment to deny")
	}

	future := now.Add(time.Hour)
	grants.assignments["user-1"][0].ExpiresAt = &future
	decision = service.CheckPermission(context.Background(), "user-1", "booking:update_status", domain.AccessContext{
		domain.ContextUserType: "provider",
	})
	if !decision.Allowed {
		t.Fatalf("expected unexpired assignment to allow, got reason %q", decision.Reason)
	}
}

func TestCheckPermissionInactiveAssignmentDenies(t *testing.T) {
	grants := newProviderGrants()
	grants.assignments["user-1"][0].IsActive = false

	service := NewAccessService(grants)

	decision := service.CheckPermission(context.Background(), "user-1", "booking:update_status", domain.AccessContext{
		domain.ContextUserType: "provider",
	})
	if decision.Allowed {
		t.Fatal("expected inactive assignment to deny")
	}
}

func TestCheckPermissionRevokedRoleGrantDenies(t *testing.T) {
	service := NewAccessService(newProviderGrants())

	decision := service.CheckPermission(context.Background(), "user-1", "payment:refund", domain.AccessContext{
		domain.ContextUserType: "provider",
	})
	if decision.Allowed {
		t.Fatal("expected granted=false role grant to deny")
	}
}

func TestCheckPermissionUnknownPermissionDenies(t *testing.T) {
	service := NewAccessService(newProviderGrants())

	decision := service.CheckPermission(context.Background(), "user-1", "role:manage", nil)
	if decision.Allowed {
		t.Fatal("expected unknown permission to deny")
	}
	if decision.Reason != "User does not have permission: role:manage" {
		t.Fatalf("unexpected denial reason %q", decision.Reason)
	}
}

func TestCheckPermissionStoreFailureFailsClosed(t *testing.T) {
	grants := newProviderGrants()
	grants.directErr = errors.New("connection refused")

	service := NewAccessService(grants)

	decision := service.CheckPermission(context.Background(), "user-1", "booking:update_status", nil)
	if decision.Allowed {
		t.Fatal("expected store failure to deny")
	}
	if decision.Reason != "Error checking permission: list direct grants: connection refused" {
		t.Fatalf("unexpected error reason %q", decision.Reason)
	}
	if !decision.CheckFailed {
		t.Fatal("expected CheckFailed set on store failure")
	}
}

func TestHasAnyAndAllPermissions(t *testing.T) {
	service := NewAccessService(newProviderGrants())
	accessCtx := domain.AccessContext{domain.ContextUserType: "provider"}

	if !service.HasAnyPermission(context.Background(), "user-1", []string{"role:manage", "booking:update_status"}, accessCtx) {
		t.Fatal("expected HasAnyPermission to allow when one permission is held")
	}
	if service.HasAnyPermission(context.Background(), "user-1", []string{"role:manage", "payment:refund"}, accessCtx) {
		t.Fatal("expected HasAnyPermission to deny when none are held")
	}

	if service.HasAllPermissions(context.Background(), "user-1", []string{"booking:update_status", "role:manage"}, accessCtx) {
		t.Fatal("expected HasAllPermissions to deny when one is missing")
	}
	if !service.HasAllPermissions(context.Background(), "user-1", []string{"booking:update_status"}, accessCtx) {
		t.Fatal("expected HasAllPermissions to allow when all are held")
	}
}

func TestCheckPermissionsEvaluatesIndependently(t *testing.T) {
	service := NewAccessService(newProviderGrants())
	accessCtx := domain.AccessContext{domain.ContextUserType: "provider"}

	results := service.CheckPermissions(context.Background(), "user-1",
		[]string{"booking:update_status", "payment:refund"}, accessCtx)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results["booking:update_status"].Allowed {
		t.Fatal("expected booking:update_status to be allowed")
	}
	if results["payment:refund"].Allowed {
		t.Fatal("expected payment:refund to be denied")
	}
}

func TestGrantSnapshotCacheHitSkipsStore(t *testing.T) {
	grants := newProviderGrants()
	cache := &decisionCacheMock{snapshots: map[string]domain.GrantSnapshot{}}

	service := NewAccessService(grants).WithCache(cache)

	accessCtx := domain.AccessContext{domain.ContextUserType: "provider"}
	if !service.CheckPermission(context.Background(), "user-1", "booking:update_status", accessCtx).Allowed {
		t.Fatal("expected first check to allow")
	}
	if cache.setCalls != 1 {
		t.Fatalf("expected snapshot to be cached, setCalls = %d", cache.setCalls)
	}

	if !service.CheckPermission(context.Background(), "user-1", "booking:update_status", accessCtx).Allowed {
		t.Fatal("expected cached check to allow")
	}
	if grants.directCalls != 1 {
		t.Fatalf("expected one store read, got %d", grants.directCalls)
	}
	if cache.hits != 1 {
		t.Fatalf("expected one cache hit, got %d", cache.hits)
	}
}

func TestGrantSnapshotCacheFailureFallsBackToStore(t *testing.T) {
	grants := newProviderGrants()
	cache := &decisionCacheMock{getErr: errors.New("redis down")}

	service := NewAccessService(grants).WithCache(cache)

	decision := service.CheckPermission(context.Background(), "user-1", "booking:update_status",
		domain.AccessContext{domain.ContextUserType: "provider"})
	if !decision.Allowed {
		t.Fatalf("expected store fallback to allow, got reason %q", decision.Reason)
	}
	if grants.directCalls != 1 {
		t.Fatalf("expected store read on cache failure, got %d", grants.directCalls)
	}
}
