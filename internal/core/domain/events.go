package domain

import "time"

// UserApprovedEvent represents the payload for iam.user.approval.approved messages.
type UserApprovedEvent struct {
	EventID    string
	ApprovalID string
	UserID     string
	RoleName   string
	ApprovedBy string
	ApprovedAt time.Time
	Notes      *string
	Metadata   map[string]any
}

// UserRejectedEvent represents the payload for iam.user.approval.rejected messages.
type UserRejectedEvent struct {
	EventID    string
	ApprovalID string
	UserID     string
	RoleName   string
	RejectedBy string
	RejectedAt time.Time
	Reason     string
	Metadata   map[string]any
}

// RoleAssignment captures an individual role change associated with an event.
type RoleAssignment struct {
	RoleID   string
	RoleName string
}

// RolesAssignedEvent represents the payload for iam.user.roles.assigned messages.
type RolesAssignedEvent struct {
	EventID    string
	UserID     string
	RolesAdded []RoleAssignment
	AssignedBy string
	AssignedAt time.Time
	Metadata   map[string]any
}

// RolesRevokedEvent represents the payload for iam.user.roles.revoked messages.
type RolesRevokedEvent struct {
	EventID      string
	UserID       string
	RolesRemoved []RoleAssignment
	RevokedBy    string
	RevokedAt    time.Time
	Reason       string
	Metadata     map[string]any
}
