package port

import (
	"context"
	"time"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
)

// UserRepository reads marketplace users and writes the approval status the
// workflow maintains.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	SetApprovalStatus(ctx context.Context, userID string, status domain.ApprovalStatus, resolvedBy string, resolvedAt time.Time) error
}
