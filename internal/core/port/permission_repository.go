package port

import (
	"context"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
)

// PermissionRepository manages the permission catalog.
type PermissionRepository interface {
	Create(ctx context.Context, permission domain.Permission) error
	// Upsert inserts the permission or refreshes its description; used by the
	// catalog bootstrap so restarts are idempotent.
	Upsert(ctx context.Context, permission domain.Permission) error
	GetByID(ctx context.Context, id string) (*domain.Permission, error)
	GetByName(ctx context.Context, name string) (*domain.Permission, error)
	List(ctx context.Context) ([]domain.Permission, error)
}
