package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
	"github.com/BuggPlayer/homeservice-iam/internal/core/port"
	"github.com/BuggPlayer/homeservice-iam/internal/repository"
)

var (
	// ErrPermissionExists indicates a permission with the provided name already exists.
	ErrPermissionExists = errors.New("permission already exists")
	// ErrInvalidPermissionName indicates the name does not match resource:action.
	ErrInvalidPermissionName = errors.New("permission name must be resource:action")
)

// CreatePermissionInput captures the payload for creating a permission. The
// catalog is closed in normal operation; this exists for extensibility.
type CreatePermissionInput struct {
	Resource    string
	Action      string
	Description *string
}

// PermissionService manages the permission catalog.
type PermissionService struct {
	permissions port.PermissionRepository
	access      *AccessService
}

// NewPermissionService constructs a PermissionService.
func NewPermissionService(permissions port.PermissionRepository, access *AccessService) *PermissionService {
	return &PermissionService{permissions: permissions, access: access}
}

// ListPermissions returns the full catalog.
func (s *PermissionService) ListPermissions(ctx context.Context) ([]domain.Permission, error) {
	permissions, err := s.permissions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return permissions, nil
}

// CreatePermission provisions a new catalog entry, ensuring the actor holds
// permission:manage. Names are immutable once created.
func (s *PermissionService) CreatePermission(ctx context.Context, actorID string, input CreatePermissionInput) (*domain.Permission, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, ErrActorRequired
	}
	if s.access != nil && !s.access.CheckPermission(ctx, actorID, PermissionCatalogManage, nil).Allowed {
		return nil, ErrPermissionDenied
	}

	resource := strings.TrimSpace(input.Resource)
	action := strings.TrimSpace(input.Action)
	name := fmt.Sprintf("%s:%s", resource, action)
	if !ValidPermissionName(name) {
		return nil, ErrInvalidPermissionName
	}

	if existing, err := s.permissions.GetByName(ctx, name); err == nil && existing != nil {
		return nil, ErrPermissionExists
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup permission by name: %w", err)
	}

	permission := domain.Permission{
		ID:       uuid.NewString(),
		Name:     name,
		Resource: resource,
		Action:   action,
		IsActive: true,
	}
	if input.Description != nil {
		trimmed := strings.TrimSpace(*input.Description)
		if trimmed != "" {
			permission.Description = &trimmed
		}
	}

	if err := s.permissions.Create(ctx, permission); err != nil {
		return nil, fmt.Errorf("create permission: %w", err)
	}

	return &permission, nil
}
