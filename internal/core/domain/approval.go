package domain

import "time"

// ApprovalStatus tracks the lifecycle of a user elevation request.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// UserApproval is a pending elevation request. It transitions exactly once
// from pending to approved or rejected and is immutable afterwards.
type UserApproval struct {
	ID            string
	UserID        string
	RequestedRole string
	Status        ApprovalStatus
	RequestedBy   string
	ResolvedBy    *string
	Notes         *string
	RequestedAt   time.Time
	ApprovedAt    *time.Time
	RejectedAt    *time.Time
}

// PendingApproval is an approval enriched with display fields for listings.
type PendingApproval struct {
	UserApproval
	TargetName    string
	TargetEmail   string
	RequesterName string
}
