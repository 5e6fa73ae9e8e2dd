package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
	"github.com/BuggPlayer/homeservice-iam/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

var _ port.EventPublisher = (*StubPublisher)(nil)

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishUserApproved logs iam.user.approval.approved events.
func (p *StubPublisher) PublishUserApproved(_ context.Context, event domain.UserApprovedEvent) error {
	payload := map[string]any{
		"approval_id": event.ApprovalID,
		"user_id":     event.UserID,
		"role_name":   event.RoleName,
		"approved_by": event.ApprovedBy,
		"approved_at": event.ApprovedAt,
		"notes":       event.Notes,
		"metadata":    event.Metadata,
	}
	p.logEvent("iam.user.approval.approved", event.UserID, event.ApprovedAt, payload)
	return nil
}

// PublishUserRejected logs iam.user.approval.rejected events.
func (p *StubPublisher) PublishUserRejected(_ context.Context, event domain.UserRejectedEvent) error {
	payload := map[string]any{
		"approval_id": event.ApprovalID,
		"user_id":     event.UserID,
		"role_name":   event.RoleName,
		"rejected_by": event.RejectedBy,
		"rejected_at": event.RejectedAt,
		"reason":      event.Reason,
		"metadata":    event.Metadata,
	}
	p.logEvent("iam.user.approval.rejected", event.UserID, event.RejectedAt, payload)
	return nil
}

// PublishRolesAssigned logs iam.user.roles.assigned events.
func (p *StubPublisher) PublishRolesAssigned(_ context.Context, event domain.RolesAssignedEvent) error {
	payload := map[string]any{
		"user_id":     event.UserID,
		"roles_added": event.RolesAdded,
		"assigned_by": event.AssignedBy,
		"assigned_at": event.AssignedAt,
		"metadata":    event.Metadata,
	}
	p.logEvent("iam.user.roles.assigned", event.UserID, event.AssignedAt, payload)
	return nil
}

// PublishRolesRevoked logs iam.user.roles.revoked events.
func (p *StubPublisher) PublishRolesRevoked(_ context.Context, event domain.RolesRevokedEvent) error {
	payload := map[string]any{
		"user_id":       event.UserID,
		"roles_removed": event.RolesRemoved,
		"revoked_by":    event.RevokedBy,
		"revoked_at":    event.RevokedAt,
		"reason":        event.Reason,
		"metadata":      event.Metadata,
	}
	p.logEvent("iam.user.roles.revoked", event.UserID, event.RevokedAt, payload)
	return nil
}
