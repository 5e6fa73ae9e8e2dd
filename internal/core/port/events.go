package port

import (
	"context"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserApproved(ctx context.Context, event domain.UserApprovedEvent) error
	PublishUserRejected(ctx context.Context, event domain.UserRejectedEvent) error
	PublishRolesAssigned(ctx context.Context, event domain.RolesAssignedEvent) error
	PublishRolesRevoked(ctx context.Context, event domain.RolesRevokedEvent) error
}
