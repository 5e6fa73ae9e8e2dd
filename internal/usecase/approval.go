package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
	"github.com/BuggPlayer/homeservice-iam/internal/core/port"
	"github.com/BuggPlayer/homeservice-iam/internal/repository"
)

var (
	// ErrUserIDRequired indicates the target user identifier is missing.
	ErrUserIDRequired = errors.New("user id is required")
	// ErrRoleNameRequired indicates the requested role name is missing.
	ErrRoleNameRequired = errors.New("role name is required")
	// ErrActorRequired indicates the acting user identifier is missing.
	ErrActorRequired = errors.New("actor is required")
	// ErrReasonRequired indicates a rejection was attempted without a reason.
	ErrReasonRequired = errors.New("rejection reason is required")
	// ErrApprovalUserNotFound is returned when the approval targets an unknown user.
	ErrApprovalUserNotFound = errors.New("approval target user not found")
	// ErrApprovalNotFound is returned when no approval exists with the given id.
	ErrApprovalNotFound = errors.New("approval not found")

	// errApprovalResolved aborts the transaction when the conditional status
	// update matched zero rows.
	errApprovalResolved = errors.New("approval not found or already processed")
	// errRequestedRoleUnknown aborts the transaction when the requested role
	// does not exist.
	errRequestedRoleUnknown = errors.New("requested role not found")
)

// ApprovalService runs the user elevation workflow: pending requests resolve
// exactly once to approved (with role assignment) or rejected, atomically.
type ApprovalService struct {
	approvals port.ApprovalRepository
	roles     port.RoleRepository
	users     port.UserRepository
	tx        port.ApprovalTxFunc
	cache     port.DecisionCache
	events    port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewApprovalService constructs the approval workflow service.
func NewApprovalService(approvals port.ApprovalRepository, roles port.RoleRepository, users port.UserRepository, tx port.ApprovalTxFunc) *ApprovalService {
	return &ApprovalService{
		approvals: approvals,
		roles:     roles,
		users:     users,
		tx:        tx,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
}

// WithCache attaches the decision cache invalidated after resolutions.
func (s *ApprovalService) WithCache(cache port.DecisionCache) *ApprovalService {
	s.cache = cache
	return s
}

// WithEvents attaches the event publisher notified after commits.
func (s *ApprovalService) WithEvents(events port.EventPublisher) *ApprovalService {
	s.events = events
	return s
}

// WithLogger attaches a structured logger to the service.
func (s *ApprovalService) WithLogger(logger *zap.Logger) *ApprovalService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithNow overrides the clock, primarily for deterministic testing.
func (s *ApprovalService) WithNow(now func() time.Time) *ApprovalService {
	if now != nil {
		s.now = now
	}
	return s
}

// CreateUserApproval records a pending elevation request. Duplicate pending
// requests for the same user are permitted; the first one resolved wins.
func (s *ApprovalService) CreateUserApproval(ctx context.Context, userID, requestedRole, requestedBy string, notes *string) (*domain.UserApproval, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	requestedRole = strings.TrimSpace(requestedRole)
	if requestedRole == "" {
		return nil, ErrRoleNameRequired
	}
	requestedBy = strings.TrimSpace(requestedBy)
	if requestedBy == "" {
		return nil, ErrActorRequired
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrApprovalUserNotFound
		}
		return nil, fmt.Errorf("lookup approval target: %w", err)
	}

	approval := domain.UserApproval{
		ID:            uuid.NewString(),
		UserID:        userID,
		RequestedRole: requestedRole,
		Status:        domain.ApprovalPending,
		RequestedBy:   requestedBy,
		RequestedAt:   s.now().UTC(),
	}

	if notes != nil {
		trimmed := strings.TrimSpace(*notes)
		if trimmed != "" {
			approval.Notes = &trimmed
		}
	}

	if err := s.approvals.Create(ctx, approval); err != nil {
		return nil, fmt.Errorf("create user approval: %w", err)
	}

	return &approval, nil
}

// ApproveUser resolves a pending approval: marks it approved, assigns the
// requested role, and flips the user's approval status, all in one
// transaction. It returns false without error when the approval was missing,
// already resolved, or names an unknown role; callers must treat that as a
// normal, anticipated outcome. Infrastructure failures roll back and
// propagate.
func (s *ApprovalService) ApproveUser(ctx context.Context, approvalID, approvedBy string, notes *string) (bool, error) {
	approvalID = strings.TrimSpace(approvalID)
	if approvalID == "" {
		return false, errors.New("approval id is required")
	}
	approvedBy = strings.TrimSpace(approvedBy)
	if approvedBy == "" {
		return false, ErrActorRequired
	}

	resolvedAt := s.now().UTC()

	var (
		approved *domain.UserApproval
		role     *domain.Role
	)

	err := s.tx(ctx, func(stores port.ApprovalStores) error {
		var err error
		approved, err = stores.Approvals.MarkApproved(ctx, approvalID, approvedBy, notes)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errApprovalResolved
			}
			return fmt.Errorf("mark approval approved: %w", err)
		}

		role, err = stores.Roles.GetByName(ctx, approved.RequestedRole)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errRequestedRoleUnknown
			}
			return fmt.Errorf("lookup requested role: %w", err)
		}

		assignment := domain.UserRole{
			UserID:     approved.UserID,
			RoleID:     role.ID,
			RoleName:   role.Name,
			AssignedBy: approvedBy,
			AssignedAt: resolvedAt,
			IsActive:   true,
		}
		if err := stores.Grants.AssignRole(ctx, assignment); err != nil {
			return fmt.Errorf("assign approved role: %w", err)
		}

		if err := stores.Users.SetApprovalStatus(ctx, approved.UserID, domain.ApprovalApproved, approvedBy, resolvedAt); err != nil {
			return fmt.Errorf("update user approval status: %w", err)
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, errApprovalResolved) {
			s.logger.Info("approval already processed", zap.String("approval_id", approvalID))
			return false, nil
		}
		if errors.Is(err, errRequestedRoleUnknown) {
			s.logger.Warn("approval names unknown role", zap.String("approval_id", approvalID))
			return false, nil
		}
		return false, err
	}

	s.afterApproval(ctx, approved, role, approvedBy, resolvedAt)

	return true, nil
}

// RejectUser resolves a pending approval as rejected, updating only the
// approval row and the user's status. Reason is mandatory.
func (s *ApprovalService) RejectUser(ctx context.Context, approvalID, rejectedBy, reason string) (bool, error) {
	approvalID = strings.TrimSpace(approvalID)
	if approvalID == "" {
		return false, errors.New("approval id is required")
	}
	rejectedBy = strings.TrimSpace(rejectedBy)
	if rejectedBy == "" {
		return false, ErrActorRequired
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return false, ErrReasonRequired
	}

	resolvedAt := s.now().UTC()

	var rejected *domain.UserApproval

	err := s.tx(ctx, func(stores port.ApprovalStores) error {
		var err error
		rejected, err = stores.Approvals.MarkRejected(ctx, approvalID, rejectedBy, reason)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errApprovalResolved
			}
			return fmt.Errorf("mark approval rejected: %w", err)
		}

		if err := stores.Users.SetApprovalStatus(ctx, rejected.UserID, domain.ApprovalRejected, rejectedBy, resolvedAt); err != nil {
			return fmt.Errorf("update user approval status: %w", err)
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, errApprovalResolved) {
			s.logger.Info("approval already processed", zap.String("approval_id", approvalID))
			return false, nil
		}
		return false, err
	}

	if s.events != nil {
		event := domain.UserRejectedEvent{
			EventID:    uuid.NewString(),
			ApprovalID: rejected.ID,
			UserID:     rejected.UserID,
			RoleName:   rejected.RequestedRole,
			RejectedBy: rejectedBy,
			RejectedAt: resolvedAt,
			Reason:     reason,
		}
		if err := s.events.PublishUserRejected(ctx, event); err != nil {
			s.logger.Warn("publish user rejected event failed", zap.String("approval_id", rejected.ID), zap.Error(err))
		}
	}

	return true, nil
}

// GetApproval fetches a single approval by id, regardless of its status.
func (s *ApprovalService) GetApproval(ctx context.Context, approvalID string) (*domain.UserApproval, error) {
	approvalID = strings.TrimSpace(approvalID)
	if approvalID == "" {
		return nil, errors.New("approval id is required")
	}

	approval, err := s.approvals.GetByID(ctx, approvalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrApprovalNotFound
		}
		return nil, fmt.Errorf("get approval: %w", err)
	}
	return approval, nil
}

// ListPendingApprovals returns pending requests, newest first, enriched with
// display fields.
func (s *ApprovalService) ListPendingApprovals(ctx context.Context) ([]domain.PendingApproval, error) {
	pending, err := s.approvals.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	return pending, nil
}

// afterApproval runs post-commit side effects: cache invalidation and event
// emission. Both are best-effort; the transaction already committed.
func (s *ApprovalService) afterApproval(ctx context.Context, approved *domain.UserApproval, role *domain.Role, approvedBy string, resolvedAt time.Time) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, approved.UserID); err != nil {
			s.logger.Warn("invalidate grant snapshot failed", zap.String("user_id", approved.UserID), zap.Error(err))
		}
	}

	if s.events == nil {
		return
	}

	approvedEvent := domain.UserApprovedEvent{
		EventID:    uuid.NewString(),
		ApprovalID: approved.ID,
		UserID:     approved.UserID,
		RoleName:   role.Name,
		ApprovedBy: approvedBy,
		ApprovedAt: resolvedAt,
		Notes:      approved.Notes,
	}
	if err := s.events.PublishUserApproved(ctx, approvedEvent); err != nil {
		s.logger.Warn("publish user approved event failed", zap.String("approval_id", approved.ID), zap.Error(err))
	}

	rolesEvent := domain.RolesAssignedEvent{
		EventID:    uuid.NewString(),
		UserID:     approved.UserID,
		RolesAdded: []domain.RoleAssignment{{RoleID: role.ID, RoleName: role.Name}},
		AssignedBy: approvedBy,
		AssignedAt: resolvedAt,
	}
	if err := s.events.PublishRolesAssigned(ctx, rolesEvent); err != nil {
		s.logger.Warn("publish roles assigned event failed", zap.String("user_id", approved.UserID), zap.Error(err))
	}
}
