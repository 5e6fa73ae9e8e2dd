package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
)

func newPermissionFixture() (*PermissionService, *permissionStoreMock) {
	permissions := &permissionStoreMock{byName: map[string]domain.Permission{}}
	grants := &grantRepoMock{
		direct: map[string][]domain.UserPermission{
			"admin-1": {{UserID: "admin-1", PermissionName: PermissionCatalogManage, Granted: true}},
		},
	}
	return NewPermissionService(permissions, NewAccessService(grants)), permissions
}

func TestValidPermissionName(t *testing.T) {
	valid := []string{"booking:read", "booking:update_status", "user:approve"}
	for _, name := range valid {
		if !ValidPermissionName(name) {
			t.Errorf("expected %q valid", name)
		}
	}

	invalid := []string{"", "booking", "booking:", ":read", "Booking:Read", "booking:read:all", "booking read"}
	for _, name := range invalid {
		if ValidPermissionName(name) {
			t.Errorf("expected %q invalid", name)
		}
	}
}

func TestCreatePermission(t *testing.T) {
	service, permissions := newPermissionFixture()

	created, err := service.CreatePermission(context.Background(), "admin-1", CreatePermissionInput{
		Resource: "invoice",
		Action:   "read",
	})
	if err != nil {
		t.Fatalf("CreatePermission failed: %v", err)
	}
	if created.Name != "invoice:read" || created.Resource != "invoice" || created.Action != "read" {
		t.Fatalf("unexpected permission %+v", created)
	}
	if _, ok := permissions.byName["invoice:read"]; !ok {
		t.Fatal("expected permission stored")
	}

	if _, err := service.CreatePermission(context.Background(), "admin-1", CreatePermissionInput{
		Resource: "invoice",
		Action:   "read",
	}); !errors.Is(err, ErrPermissionExists) {
		t.Fatalf("expected ErrPermissionExists, got %v", err)
	}
}

func TestCreatePermissionValidation(t *testing.T) {
	service, _ := newPermissionFixture()

	if _, err := service.CreatePermission(context.Background(), "", CreatePermissionInput{
		Resource: "invoice", Action: "read",
	}); !errors.Is(err, ErrActorRequired) {
		t.Fatalf("expected ErrActorRequired, got %v", err)
	}

	if _, err := service.CreatePermission(context.Background(), "intruder", CreatePermissionInput{
		Resource: "invoice", Action: "read",
	}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	if _, err := service.CreatePermission(context.Background(), "admin-1", CreatePermissionInput{
		Resource: "Invoice", Action: "read",
	}); !errors.Is(err, ErrInvalidPermissionName) {
		t.Fatalf("expected ErrInvalidPermissionName, got %v", err)
	}
}

func TestBootstrapCatalogSeedsEveryEntry(t *testing.T) {
	permissions := &permissionStoreMock{byName: map[string]domain.Permission{}}

	if err := BootstrapCatalog(context.Background(), permissions, nil); err != nil {
		t.Fatalf("BootstrapCatalog failed: %v", err)
	}
	if len(permissions.upserted) != len(SystemCatalog) {
		t.Fatalf("expected %d upserts, got %d", len(SystemCatalog), len(permissions.upserted))
	}
	for _, name := range []string{"role:manage", "role:assign", "user:approve", "booking:update_status", "payment:refund"} {
		if _, ok := permissions.byName[name]; !ok {
			t.Fatalf("expected %q seeded", name)
		}
	}

	if err := BootstrapCatalog(context.Background(), permissions, nil); err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}
	if len(permissions.byName) != len(SystemCatalog) {
		t.Fatalf("expected catalog stable across reruns, got %d entries", len(permissions.byName))
	}
}
