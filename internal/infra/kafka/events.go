package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
	"github.com/BuggPlayer/homeservice-iam/internal/core/port"
	"github.com/BuggPlayer/homeservice-iam/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

var _ port.EventPublisher = (*EventPublisher)(nil)

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserApproved publishes iam.user.approval.approved events.
func (p *EventPublisher) PublishUserApproved(ctx context.Context, event domain.UserApprovedEvent) error {
	payload := struct {
		ApprovalID string         `json:"approval_id"`
		UserID     string         `json:"user_id"`
		RoleName   string         `json:"role_name"`
		ApprovedBy string         `json:"approved_by"`
		ApprovedAt time.Time      `json:"approved_at"`
		Notes      *string        `json:"notes,omitempty"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		ApprovalID: event.ApprovalID,
		UserID:     event.UserID,
		RoleName:   event.RoleName,
		ApprovedBy: event.ApprovedBy,
		ApprovedAt: event.ApprovedAt.UTC(),
		Notes:      event.Notes,
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, "iam.user.approval.approved", event.UserID, event.ApprovedAt, payload)
}

// PublishUserRejected publishes iam.user.approval.rejected events.
func (p *EventPublisher) PublishUserRejected(ctx context.Context, event domain.UserRejectedEvent) error {
	payload := struct {
		ApprovalID string         `json:"approval_id"`
		UserID     string         `json:"user_id"`
		RoleName   string         `json:"role_name"`
		RejectedBy string         `json:"rejected_by"`
		RejectedAt time.Time      `json:"rejected_at"`
		Reason     string         `json:"reason"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		ApprovalID: event.ApprovalID,
		UserID:     event.UserID,
		RoleName:   event.RoleName,
		RejectedBy: event.RejectedBy,
		RejectedAt: event.RejectedAt.UTC(),
		Reason:     event.Reason,
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, "iam.user.approval.rejected", event.UserID, event.RejectedAt, payload)
}

// PublishRolesAssigned publishes iam.user.roles.assigned events.
func (p *EventPublisher) PublishRolesAssigned(ctx context.Context, event domain.RolesAssignedEvent) error {
	payload := struct {
		UserID     string            `json:"user_id"`
		RolesAdded []roleChangeEntry `json:"roles_added"`
		AssignedBy string            `json:"assigned_by"`
		AssignedAt time.Time         `json:"assigned_at"`
		Metadata   map[string]any    `json:"metadata,omitempty"`
	}{
		UserID:     event.UserID,
		RolesAdded: newRoleChangeEntries(event.RolesAdded),
		AssignedBy: event.AssignedBy,
		AssignedAt: event.AssignedAt.UTC(),
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, "iam.user.roles.assigned", event.UserID, event.AssignedAt, payload)
}

// PublishRolesRevoked publishes iam.user.roles.revoked events.
func (p *EventPublisher) PublishRolesRevoked(ctx context.Context, event domain.RolesRevokedEvent) error {
	payload := struct {
		UserID       string            `json:"user_id"`
		RolesRemoved []roleChangeEntry `json:"roles_removed"`
		RevokedBy    string            `json:"revoked_by"`
		RevokedAt    time.Time         `json:"revoked_at"`
		Reason       string            `json:"reason,omitempty"`
		Metadata     map[string]any    `json:"metadata,omitempty"`
	}{
		UserID:       event.UserID,
		RolesRemoved: newRoleChangeEntries(event.RolesRemoved),
		RevokedBy:    event.RevokedBy,
		RevokedAt:    event.RevokedAt.UTC(),
		Reason:       event.Reason,
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, "iam.user.roles.revoked", event.UserID, event.RevokedAt, payload)
}

type roleChangeEntry struct {
	RoleID   string `json:"role_id"`
	RoleName string `json:"role_name"`
}

func newRoleChangeEntries(changes []domain.RoleAssignment) []roleChangeEntry {
	entries := make([]roleChangeEntry, 0, len(changes))
	for _, change := range changes {
		entries = append(entries, roleChangeEntry{RoleID: change.RoleID, RoleName: change.RoleName})
	}
	return entries
}
