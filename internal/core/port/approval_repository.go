package port

import (
	"context"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
)

// ApprovalRepository persists user approval requests.
type ApprovalRepository interface {
	Create(ctx context.Context, approval domain.UserApproval) error
	GetByID(ctx context.Context, id string) (*domain.UserApproval, error)
	// MarkApproved conditionally transitions the approval to approved, guarded
	// on the current status still being pending, and returns the updated row.
	// When the guard matches zero rows the approval is missing or already
	// resolved and repository.ErrNotFound is returned; that is how a
	// concurrent loser observes "already processed".
	MarkApproved(ctx context.Context, approvalID, approvedBy string, notes *string) (*domain.UserApproval, error)
	// MarkRejected is the symmetric conditional transition to rejected.
	MarkRejected(ctx context.Context, approvalID, rejectedBy, reason string) (*domain.UserApproval, error)
	// ListPending returns pending approvals enriched with requester and target
	// display fields, newest request first.
	ListPending(ctx context.Context) ([]domain.PendingApproval, error)
}

// ApprovalStores groups the repositories the approval workflow mutates inside
// one transaction.
type ApprovalStores struct {
	Approvals ApprovalRepository
	Roles     RoleRepository
	Grants    GrantRepository
	Users     UserRepository
}

// ApprovalTxFunc runs fn against transaction-bound stores, committing when fn
// returns nil and rolling back otherwise.
type ApprovalTxFunc func(ctx context.Context, fn func(stores ApprovalStores) error) error
