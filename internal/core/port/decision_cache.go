package port

import (
	"context"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
)

// DecisionCache stores per-user grant snapshots. Reads tolerate a short
// staleness window; mutations to roles or grants must invalidate the user.
type DecisionCache interface {
	GetGrantSnapshot(ctx context.Context, userID string) (*domain.GrantSnapshot, error)
	SetGrantSnapshot(ctx context.Context, snapshot domain.GrantSnapshot) error
	Invalidate(ctx context.Context, userID string) error
}
