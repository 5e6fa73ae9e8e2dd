package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuggPlayer/homeservice-iam/internal/core/port"
)

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Roles       *RoleRepository
	Permissions *PermissionRepository
	Grants      *GrantRepository
	Approvals   *ApprovalRepository
	Users       *UserRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Roles:       NewRoleRepository(pool),
		Permissions: NewPermissionRepository(pool),
		Grants:      NewGrantRepository(pool),
		Approvals:   NewApprovalRepository(pool),
		Users:       NewUserRepository(pool),
	}
}

// ApprovalTx returns the transaction runner the approval workflow executes
// in: one transaction spanning the conditional status update, the role
// assignment, and the user status write.
func (r *Repositories) ApprovalTx() port.ApprovalTxFunc {
	return func(ctx context.Context, fn func(stores port.ApprovalStores) error) error {
		return runInTx(ctx, r.Approvals.pool, func(tx pgx.Tx) error {
			return fn(port.ApprovalStores{
				Approvals: r.Approvals.WithTx(tx),
				Roles:     r.Roles.WithTx(tx),
				Grants:    r.Grants.WithTx(tx),
				Users:     r.Users.WithTx(tx),
			})
		})
	}
}
