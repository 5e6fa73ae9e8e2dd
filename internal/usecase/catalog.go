package usecase

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
	"github.com/BuggPlayer/homeservice-iam/internal/core/port"
)

// Permission names used by this service's own management surface.
const (
	PermissionRoleManage    = "role:manage"
	PermissionRoleAssign    = "role:assign"
	PermissionCatalogManage = "permission:manage"
	PermissionUserApprove   = "user:approve"
	PermissionUserRead      = "user:read"
)

// CatalogEntry declares one compiled-in permission.
type CatalogEntry struct {
	Resource    string
	Action      string
	Description string
}

// SystemCatalog is the fixed permission catalog seeded at bootstrap. Names
// are resource:action; the shape is validated here, not at check time.
var SystemCatalog = []CatalogEntry{
	{Resource: "role", Action: "manage", Description: "Create, update, and deactivate roles and their grants"},
	{Resource: "role", Action: "assign", Description: "Assign roles and direct grants to users"},
	{Resource: "permission", Action: "manage", Description: "Extend the permission catalog"},
	{Resource: "user", Action: "read", Description: "View marketplace user records"},
	{Resource: "user", Action: "update", Description: "Update marketplace user records"},
	{Resource: "user", Action: "approve", Description: "Resolve pending user approvals"},
	{Resource: "provider", Action: "read", Description: "View provider profiles"},
	{Resource: "provider", Action: "update", Description: "Update provider profiles"},
	{Resource: "product", Action: "create", Description: "Create catalog products"},
	{Resource: "product", Action: "update", Description: "Update catalog products"},
	{Resource: "product", Action: "delete", Description: "Remove catalog products"},
	{Resource: "booking", Action: "read", Description: "View bookings"},
	{Resource: "booking", Action: "update_status", Description: "Advance booking status"},
	{Resource: "quote", Action: "read", Description: "View quotes"},
	{Resource: "quote", Action: "respond", Description: "Respond to quote requests"},
	{Resource: "payment", Action: "read", Description: "View payment records"},
	{Resource: "payment", Action: "refund", Description: "Issue payment refunds"},
}

var permissionNamePattern = regexp.MustCompile(`^[a-z][a-z_]*:[a-z][a-z_]*$`)

// ValidPermissionName reports whether the name matches the resource:action
// convention enforced at the catalog boundary.
func ValidPermissionName(name string) bool {
	return permissionNamePattern.MatchString(name)
}

// BootstrapCatalog upserts the system catalog. It runs at startup and is
// idempotent across restarts.
func BootstrapCatalog(ctx context.Context, permissions port.PermissionRepository, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, entry := range SystemCatalog {
		name := fmt.Sprintf("%s:%s", entry.Resource, entry.Action)
		if !ValidPermissionName(name) {
			return fmt.Errorf("catalog entry %q: %w", name, ErrInvalidPermissionName)
		}

		description := entry.Description
		permission := domain.Permission{
			ID:          uuid.NewString(),
			Name:        name,
			Resource:    entry.Resource,
			Action:      entry.Action,
			Description: &description,
			IsActive:    true,
		}
		if err := permissions.Upsert(ctx, permission); err != nil {
			return fmt.Errorf("seed permission %q: %w", name, err)
		}
	}

	logger.Info("permission catalog bootstrapped", zap.Int("permissions", len(SystemCatalog)))
	return nil
}
