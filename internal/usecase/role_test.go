package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
	"github.com/BuggPlayer/homeservice-iam/internal/repository"
)

type roleStoreMock struct {
	byID   map[string]domain.Role
	byName map[string]domain.Role
}

func newRoleStoreMock() *roleStoreMock {
	return &roleStoreMock{byID: map[string]domain.Role{}, byName: map[string]domain.Role{}}
}

func (m *roleStoreMock) add(role domain.Role) {
	m.byID[role.ID] = role
	m.byName[role.Name] = role
}

func (m *roleStoreMock) Create(_ context.Context, role domain.Role) error {
	m.add(role)
	return nil
}

func (m *roleStoreMock) List(context.Context) ([]domain.Role, error) {
	roles := make([]domain.Role, 0, len(m.byID))
	for _, role := range m.byID {
		roles = append(roles, role)
	}
	return roles, nil
}

func (m *roleStoreMock) GetByID(_ context.Context, id string) (*domain.Role, error) {
	role, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := role
	return &copy, nil
}

func (m *roleStoreMock) GetByName(_ context.Context, name string) (*domain.Role, error) {
	role, ok := m.byName[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := role
	return &copy, nil
}

func (m *roleStoreMock) Update(_ context.Context, role domain.Role) error {
	if _, ok := m.byID[role.ID]; !ok {
		return repository.ErrNotFound
	}
	m.add(role)
	return nil
}

func (m *roleStoreMock) Deactivate(_ context.Context, id string) error {
	role, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	role.IsActive = false
	m.add(role)
	return nil
}

type permissionStoreMock struct {
	byName   map[string]domain.Permission
	upserted []domain.Permission
}

func (m *permissionStoreMock) Create(_ context.Context, permission domain.Permission) error {
	if m.byName == nil {
		m.byName = map[string]domain.Permission{}
	}
	if _, ok := m.byName[permission.Name]; ok {
		return errors.New("duplicate permission")
	}
	m.byName[permission.Name] = permission
	return nil
}

func (m *permissionStoreMock) Upsert(_ context.Context, permission domain.Permission) error {
	if m.byName == nil {
		m.byName = map[string]domain.Permission{}
	}
	m.byName[permission.Name] = permission
	m.upserted = append(m.upserted, permission)
	return nil
}

func (m *permissionStoreMock) GetByID(context.Context, string) (*domain.Permission, error) {
	return nil, errors.New("unexpected call: GetByID permission")
}

func (m *permissionStoreMock) GetByName(_ context.Context, name string) (*domain.Permission, error) {
	permission, ok := m.byName[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := permission
	return &copy, nil
}

func (m *permissionStoreMock) List(context.Context) ([]domain.Permission, error) {
	permissions := make([]domain.Permission, 0, len(m.byName))
	for _, permission := range m.byName {
		permissions = append(permissions, permission)
	}
	return permissions, nil
}

type writableGrantMock struct {
	grantRepoMock
	roleAssignments []domain.UserRole
	directUpserts   []domain.UserPermission
	grantUpserts    []domain.RolePermission
	revoked         []string
}

func (m *writableGrantMock) AssignRole(_ context.Context, assignment domain.UserRole) error {
	m.roleAssignments = append(m.roleAssignments, assignment)
	return nil
}

func (m *writableGrantMock) UpsertDirectGrant(_ context.Context, grant domain.UserPermission) error {
	m.directUpserts = append(m.directUpserts, grant)
	return nil
}

func (m *writableGrantMock) UpsertRoleGrant(_ context.Context, grant domain.RolePermission) error {
	m.grantUpserts = append(m.grantUpserts, grant)
	return nil
}

func (m *writableGrantMock) RevokeRole(_ context.Context, userID, roleID string) error {
	m.revoked = append(m.revoked, userID+":"+roleID)
	return nil
}

// newRoleFixture builds a role service whose actor check resolves against the
// admin user's direct grants.
func newRoleFixture() (*RoleService, *roleStoreMock, *permissionStoreMock, *writableGrantMock, *userRepoMock, *decisionCacheMock) {
	roles := newRoleStoreMock()
	permissions := &permissionStoreMock{byName: map[string]domain.Permission{}}
	grants := &writableGrantMock{}
	users := &userRepoMock{users: map[string]domain.User{}}
	cache := &decisionCacheMock{snapshots: map[string]domain.GrantSnapshot{}}

	grants.direct = map[string][]domain.UserPermission{
		"admin-1": {
			{UserID: "admin-1", PermissionName: PermissionRoleManage, Granted: true},
			{UserID: "admin-1", PermissionName: PermissionRoleAssign, Granted: true},
		},
	}

	access := NewAccessService(&grants.grantRepoMock)
	service := NewRoleService(roles, permissions, grants, users, access).WithCache(cache)
	return service, roles, permissions, grants, users, cache
}

func TestCreateRoleRequiresManagePermission(t *testing.T) {
	service, _, _, _, _, _ := newRoleFixture()

	if _, err := service.CreateRole(context.Background(), "intruder", CreateRoleInput{Name: "ops"}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	role, err := service.CreateRole(context.Background(), "admin-1", CreateRoleInput{Name: "ops"})
	if err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}
	if role.Name != "ops" || !role.IsActive {
		t.Fatalf("unexpected role %+v", role)
	}

	if _, err := service.CreateRole(context.Background(), "admin-1", CreateRoleInput{Name: "ops"}); !errors.Is(err, ErrRoleExists) {
		t.Fatalf("expected ErrRoleExists, got %v", err)
	}
}

func TestSetRolePermissionsUpsertsGrants(t *testing.T) {
	service, roles, permissions, grants, _, _ := newRoleFixture()
	roles.add(domain.Role{ID: "role-ops", Name: "ops", IsActive: true})
	permissions.byName["booking:read"] = domain.Permission{ID: "perm-1", Name: "booking:read"}

	written, err := service.SetRolePermissions(context.Background(), "admin-1", "role-ops", []RoleGrantInput{
		{PermissionName: "booking:read", Granted: true, Conditions: []domain.Condition{
			{Field: domain.ContextUserType, Operator: domain.OpEquals, Value: "provider"},
		}},
	})
	if err != nil {
		t.Fatalf("SetRolePermissions failed: %v", err)
	}
	if len(written) != 1 || len(grants.grantUpserts) != 1 {
		t.Fatalf("expected one grant written, got %d/%d", len(written), len(grants.grantUpserts))
	}
	grant := grants.grantUpserts[0]
	if grant.RoleID != "role-ops" || grant.PermissionID != "perm-1" || len(grant.Conditions) != 1 {
		t.Fatalf("unexpected grant %+v", grant)
	}

	_, err = service.SetRolePermissions(context.Background(), "admin-1", "role-ops", []RoleGrantInput{
		{PermissionName: "ghost:perm", Granted: true},
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown permission, got %v", err)
	}
}

func TestAssignRoleInvalidatesCache(t *testing.T) {
	service, roles, _, grants, users, cache := newRoleFixture()
	roles.add(domain.Role{ID: "role-provider", Name: "provider", IsActive: true})
	users.users["user-1"] = domain.User{ID: "user-1"}
	cache.snapshots["user-1"] = domain.GrantSnapshot{UserID: "user-1"}

	assignment, err := service.AssignRole(context.Background(), "admin-1", AssignRoleInput{
		UserID:   "user-1",
		RoleName: "provider",
	})
	if err != nil {
		t.Fatalf("AssignRole failed: %v", err)
	}
	if assignment.RoleID != "role-provider" || assignment.AssignedBy != "admin-1" || !assignment.IsActive {
		t.Fatalf("unexpected assignment %+v", assignment)
	}
	if len(grants.roleAssignments) != 1 {
		t.Fatalf("expected one assignment written, got %d", len(grants.roleAssignments))
	}
	if _, stillCached := cache.snapshots["user-1"]; stillCached {
		t.Fatal("expected grant snapshot to be invalidated")
	}
}

func TestAssignRoleUnknownUser(t *testing.T) {
	service, roles, _, _, _, _ := newRoleFixture()
	roles.add(domain.Role{ID: "role-provider", Name: "provider", IsActive: true})

	if _, err := service.AssignRole(context.Background(), "admin-1", AssignRoleInput{
		UserID:   "ghost",
		RoleName: "provider",
	}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRevokeRoleInvalidatesCache(t *testing.T) {
	service, roles, _, grants, _, cache := newRoleFixture()
	roles.add(domain.Role{ID: "role-provider", Name: "provider", IsActive: true})
	cache.snapshots["user-1"] = domain.GrantSnapshot{UserID: "user-1"}

	if err := service.RevokeRole(context.Background(), "admin-1", "user-1", "provider"); err != nil {
		t.Fatalf("RevokeRole failed: %v", err)
	}
	if len(grants.revoked) != 1 || grants.revoked[0] != "user-1:role-provider" {
		t.Fatalf("unexpected revocations %v", grants.revoked)
	}
	if _, stillCached := cache.snapshots["user-1"]; stillCached {
		t.Fatal("expected grant snapshot to be invalidated")
	}
}

func TestGrantDirectPermission(t *testing.T) {
	service, _, permissions, grants, _, _ := newRoleFixture()
	permissions.byName["payment:refund"] = domain.Permission{ID: "perm-9", Name: "payment:refund"}

	if err := service.GrantDirectPermission(context.Background(), "admin-1", "user-1", "payment:refund", true); err != nil {
		t.Fatalf("GrantDirectPermission failed: %v", err)
	}
	if len(grants.directUpserts) != 1 {
		t.Fatalf("expected one direct grant, got %d", len(grants.directUpserts))
	}
	grant := grants.directUpserts[0]
	if grant.PermissionID != "perm-9" || !grant.Granted || !grant.IsActive {
		t.Fatalf("unexpected direct grant %+v", grant)
	}
}

func TestDeactivateRole(t *testing.T) {
	service, roles, _, _, _, _ := newRoleFixture()
	roles.add(domain.Role{ID: "role-ops", Name: "ops", IsActive: true, CreatedAt: time.Now()})

	if err := service.DeactivateRole(context.Background(), "admin-1", "role-ops"); err != nil {
		t.Fatalf("DeactivateRole failed: %v", err)
	}
	if roles.byID["role-ops"].IsActive {
		t.Fatal("expected role marked inactive")
	}

	if err := service.DeactivateRole(context.Background(), "admin-1", "ghost"); !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
}
