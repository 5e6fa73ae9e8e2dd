package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
	"github.com/BuggPlayer/homeservice-iam/internal/core/port"
	"github.com/BuggPlayer/homeservice-iam/internal/repository"
)

var (
	// ErrRoleExists indicates a role with the provided name already exists.
	ErrRoleExists = errors.New("role already exists")
	// ErrRoleNotFound indicates the referenced role does not exist.
	ErrRoleNotFound = errors.New("role not found")
	// ErrPermissionDenied indicates the actor lacks required permissions.
	ErrPermissionDenied = errors.New("insufficient permissions")
	// ErrUserNotFound is returned when assigning a role to an unknown user.
	ErrUserNotFound = errors.New("user not found")
)

// CreateRoleInput captures the payload for creating a role.
type CreateRoleInput struct {
	Name        string
	Description *string
}

// RoleGrantInput is a permission grant to attach to a role, with optional
// conditions evaluated at check time.
type RoleGrantInput struct {
	PermissionName string
	Granted        bool
	Conditions     []domain.Condition
}

// AssignRoleInput captures a user-role assignment.
type AssignRoleInput struct {
	UserID    string
	RoleName  string
	ExpiresAt *time.Time
}

// RoleService manages roles, their grants, and user assignments.
type RoleService struct {
	roles       port.RoleRepository
	permissions port.PermissionRepository
	grants      port.GrantRepository
	users       port.UserRepository
	access      *AccessService
	cache       port.DecisionCache
	events      port.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewRoleService constructs a RoleService.
func NewRoleService(roles port.RoleRepository, permissions port.PermissionRepository, grants port.GrantRepository, users port.UserRepository, access *AccessService) *RoleService {
	return &RoleService{
		roles:       roles,
		permissions: permissions,
		grants:      grants,
		users:       users,
		access:      access,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
}

// WithCache attaches the decision cache invalidated on assignment changes.
func (s *RoleService) WithCache(cache port.DecisionCache) *RoleService {
	s.cache = cache
	return s
}

// WithEvents attaches the event publisher for assignment notifications.
func (s *RoleService) WithEvents(events port.EventPublisher) *RoleService {
	s.events = events
	return s
}

// WithLogger attaches a structured logger to the service.
func (s *RoleService) WithLogger(logger *zap.Logger) *RoleService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithNow overrides the clock, primarily for deterministic testing.
func (s *RoleService) WithNow(now func() time.Time) *RoleService {
	if now != nil {
		s.now = now
	}
	return s
}

// ListRoles returns all roles.
func (s *RoleService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return s.roles.List(ctx)
}

// ListUserRoles returns the user's currently effective role assignments.
func (s *RoleService) ListUserRoles(ctx context.Context, userID string) ([]domain.UserRole, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserNotFound
	}
	assignments, err := s.grants.ListEffectiveRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	return assignments, nil
}

// GetRole retrieves a role together with its grants.
func (s *RoleService) GetRole(ctx context.Context, roleID string) (*domain.Role, []domain.RolePermission, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, nil, errors.New("role id is required")
	}

	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrRoleNotFound
		}
		return nil, nil, fmt.Errorf("get role: %w", err)
	}

	grants, err := s.grants.ListRoleGrants(ctx, roleID)
	if err != nil {
		return nil, nil, fmt.Errorf("list role grants: %w", err)
	}

	return role, grants, nil
}

// CreateRole provisions a new role, ensuring the actor holds role:manage.
func (s *RoleService) CreateRole(ctx context.Context, actorID string, input CreateRoleInput) (*domain.Role, error) {
	if err := s.requireActor(ctx, actorID, PermissionRoleManage); err != nil {
		return nil, err
	}

	roleName := strings.TrimSpace(input.Name)
	if roleName == "" {
		return nil, ErrRoleNameRequired
	}

	if existing, err := s.roles.GetByName(ctx, roleName); err == nil && existing != nil {
		return nil, ErrRoleExists
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup role by name: %w", err)
	}

	now := s.now().UTC()
	role := domain.Role{
		ID:        uuid.NewString(),
		Name:      roleName,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.Description != nil {
		trimmed := strings.TrimSpace(*input.Description)
		if trimmed != "" {
			role.Description = &trimmed
		}
	}

	if err := s.roles.Create(ctx, role); err != nil {
		return nil, fmt.Errorf("create role: %w", err)
	}

	return &role, nil
}

// UpdateRole modifies an existing role's name or description.
func (s *RoleService) UpdateRole(ctx context.Context, actorID, roleID string, input CreateRoleInput) (*domain.Role, error) {
	if err := s.requireActor(ctx, actorID, PermissionRoleManage); err != nil {
		return nil, err
	}

	role, err := s.roles.GetByID(ctx, strings.TrimSpace(roleID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("get role: %w", err)
	}

	if name := strings.TrimSpace(input.Name); name != "" {
		role.Name = name
	}
	if input.Description != nil {
		trimmed := strings.TrimSpace(*input.Description)
		if trimmed == "" {
			role.Description = nil
		} else {
			role.Description = &trimmed
		}
	}
	role.UpdatedAt = s.now().UTC()

	if err := s.roles.Update(ctx, *role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("update role: %w", err)
	}

	return role, nil
}

// DeactivateRole flips a role inactive. Roles are never deleted so assignment
// history keeps its referent.
func (s *RoleService) DeactivateRole(ctx context.Context, actorID, roleID string) error {
	if err := s.requireActor(ctx, actorID, PermissionRoleManage); err != nil {
		return err
	}

	if err := s.roles.Deactivate(ctx, strings.TrimSpace(roleID)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("deactivate role: %w", err)
	}

	return nil
}

// SetRolePermissions upserts grants for a role. Each grant is unique per
// (role, permission) pair; re-assigning updates the row in place.
func (s *RoleService) SetRolePermissions(ctx context.Context, actorID, roleID string, inputs []RoleGrantInput) ([]domain.RolePermission, error) {
	if err := s.requireActor(ctx, actorID, PermissionRoleManage); err != nil {
		return nil, err
	}

	role, err := s.roles.GetByID(ctx, strings.TrimSpace(roleID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("get role: %w", err)
	}

	written := make([]domain.RolePermission, 0, len(inputs))
	for _, input := range inputs {
		name := strings.TrimSpace(input.PermissionName)
		if name == "" {
			return nil, errors.New("permission name is required")
		}

		permission, err := s.permissions.GetByName(ctx, name)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("permission %q: %w", name, repository.ErrNotFound)
			}
			return nil, fmt.Errorf("lookup permission %q: %w", name, err)
		}

		grant := domain.RolePermission{
			RoleID:         role.ID,
			PermissionID:   permission.ID,
			PermissionName: permission.Name,
			Granted:        input.Granted,
			Conditions:     input.Conditions,
		}
		if err := s.grants.UpsertRoleGrant(ctx, grant); err != nil {
			return nil, fmt.Errorf("upsert role grant %q: %w", name, err)
		}
		written = append(written, grant)
	}

	return written, nil
}

// AssignRole assigns a role to a user, reactivating a revoked assignment.
func (s *RoleService) AssignRole(ctx context.Context, actorID string, input AssignRoleInput) (*domain.UserRole, error) {
	if err := s.requireActor(ctx, actorID, PermissionRoleAssign); err != nil {
		return nil, err
	}

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	role, err := s.roles.GetByName(ctx, strings.TrimSpace(input.RoleName))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("lookup role by name: %w", err)
	}

	assignment := domain.UserRole{
		UserID:     userID,
		RoleID:     role.ID,
		RoleName:   role.Name,
		AssignedBy: strings.TrimSpace(actorID),
		AssignedAt: s.now().UTC(),
		ExpiresAt:  input.ExpiresAt,
		IsActive:   true,
	}

	if err := s.grants.AssignRole(ctx, assignment); err != nil {
		return nil, fmt.Errorf("assign role: %w", err)
	}

	s.invalidate(ctx, userID)
	s.publishAssigned(ctx, assignment, role)

	return &assignment, nil
}

// RevokeRole deactivates a user's role assignment.
func (s *RoleService) RevokeRole(ctx context.Context, actorID, userID, roleName string) error {
	if err := s.requireActor(ctx, actorID, PermissionRoleAssign); err != nil {
		return err
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}

	role, err := s.roles.GetByName(ctx, strings.TrimSpace(roleName))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("lookup role by name: %w", err)
	}

	if err := s.grants.RevokeRole(ctx, userID, role.ID); err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}

	s.invalidate(ctx, userID)

	if s.events != nil {
		event := domain.RolesRevokedEvent{
			EventID:      uuid.NewString(),
			UserID:       userID,
			RolesRemoved: []domain.RoleAssignment{{RoleID: role.ID, RoleName: role.Name}},
			RevokedBy:    strings.TrimSpace(actorID),
			RevokedAt:    s.now().UTC(),
		}
		if err := s.events.PublishRolesRevoked(ctx, event); err != nil {
			s.logger.Warn("publish roles revoked event failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	return nil
}

// GrantDirectPermission writes a one-off direct grant for a user, bypassing
// roles.
func (s *RoleService) GrantDirectPermission(ctx context.Context, actorID, userID, permissionName string, granted bool) error {
	if err := s.requireActor(ctx, actorID, PermissionRoleAssign); err != nil {
		return err
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}

	permission, err := s.permissions.GetByName(ctx, strings.TrimSpace(permissionName))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("permission %q: %w", permissionName, repository.ErrNotFound)
		}
		return fmt.Errorf("lookup permission: %w", err)
	}

	grant := domain.UserPermission{
		UserID:         userID,
		PermissionID:   permission.ID,
		PermissionName: permission.Name,
		Granted:        granted,
		IsActive:       true,
	}
	if err := s.grants.UpsertDirectGrant(ctx, grant); err != nil {
		return fmt.Errorf("upsert direct grant: %w", err)
	}

	s.invalidate(ctx, userID)

	return nil
}

func (s *RoleService) requireActor(ctx context.Context, actorID, permission string) error {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return ErrActorRequired
	}
	if s.access == nil {
		return nil
	}
	if !s.access.CheckPermission(ctx, actorID, permission, nil).Allowed {
		return ErrPermissionDenied
	}
	return nil
}

func (s *RoleService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("invalidate grant snapshot failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *RoleService) publishAssigned(ctx context.Context, assignment domain.UserRole, role *domain.Role) {
	if s.events == nil {
		return
	}
	event := domain.RolesAssignedEvent{
		EventID:    uuid.NewString(),
		UserID:     assignment.UserID,
		RolesAdded: []domain.RoleAssignment{{RoleID: role.ID, RoleName: role.Name}},
		AssignedBy: assignment.AssignedBy,
		AssignedAt: assignment.AssignedAt,
	}
	if err := s.events.PublishRolesAssigned(ctx, event); err != nil {
		s.logger.Warn("publish roles assigned event failed", zap.String("user_id", assignment.UserID), zap.Error(err))
	}
}
