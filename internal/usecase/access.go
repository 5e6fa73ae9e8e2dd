package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
	"github.com/BuggPlayer/homeservice-iam/internal/core/port"
	"github.com/BuggPlayer/homeservice-iam/internal/repository"
)

// AccessMetrics captures telemetry hooks for permission resolution outcomes.
type AccessMetrics interface {
	IncAllowed()
	IncDenied()
	IncError()
}

// AccessService answers "may user U perform permission P given context C".
// Denial is a return value, never an error; store failures resolve to a
// fail-closed denial carrying a distinct reason.
type AccessService struct {
	grants  port.GrantRepository
	cache   port.DecisionCache
	logger  *zap.Logger
	metrics AccessMetrics
	now     func() time.Time
}

// NewAccessService constructs the permission resolver.
func NewAccessService(grants port.GrantRepository) *AccessService {
	return &AccessService{
		grants: grants,
		logger: zap.NewNop(),
		now:    time.Now,
	}
}

// WithCache attaches a grant snapshot cache. Cache failures degrade to store
// reads; a brief staleness window after revocation is an accepted tradeoff.
func (s *AccessService) WithCache(cache port.DecisionCache) *AccessService {
	s.cache = cache
	return s
}

// WithLogger attaches a structured logger for operational diagnostics.
func (s *AccessService) WithLogger(logger *zap.Logger) *AccessService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithMetrics wires telemetry observers for access decisions.
func (s *AccessService) WithMetrics(metrics AccessMetrics) *AccessService {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

// WithNow overrides the clock used to judge role assignment expiry.
func (s *AccessService) WithNow(now func() time.Time) *AccessService {
	if now != nil {
		s.now = now
	}
	return s
}

// CheckPermission resolves a single permission for a user. Direct grants are
// unconditional and short-circuit role evaluation; role grants apply only
// when active, unexpired, marked granted, and their conditions hold against
// the supplied context. No matching grant path means denial.
func (s *AccessService) CheckPermission(ctx context.Context, userID, permission string, accessCtx domain.AccessContext) domain.AccessDecision {
	userID = strings.TrimSpace(userID)
	permission = strings.TrimSpace(permission)

	snapshot, err := s.grantSnapshot(ctx, userID)
	if err != nil {
		s.logger.Error("permission check failed",
			zap.String("user_id", userID),
			zap.String("permission", permission),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.IncError()
		}
		return domain.AccessDecision{Allowed: false, Reason: fmt.Sprintf("Error checking permission: %s", err.Error()), CheckFailed: true}
	}

	for _, name := range snapshot.Direct {
		if name == permission {
			return s.allow()
		}
	}

	for _, role := range snapshot.Roles {
		for _, grant := range role.Grants {
			if grant.PermissionName != permission || !grant.Granted {
				continue
			}
			if conditionsHold(grant.Conditions, accessCtx) {
				return s.allow()
			}
		}
	}

	if s.metrics != nil {
		s.metrics.IncDenied()
	}
	return domain.AccessDecision{Allowed: false, Reason: fmt.Sprintf("User does not have permission: %s", permission)}
}

// CheckPermissions evaluates each permission independently.
func (s *AccessService) CheckPermissions(ctx context.Context, userID string, permissions []string, accessCtx domain.AccessContext) map[string]domain.AccessDecision {
	results := make(map[string]domain.AccessDecision, len(permissions))
	for _, permission := range permissions {
		results[permission] = s.CheckPermission(ctx, userID, permission, accessCtx)
	}
	return results
}

// HasAnyPermission reports whether any of the permissions resolves allowed,
// stopping at the first success.
func (s *AccessService) HasAnyPermission(ctx context.Context, userID string, permissions []string, accessCtx domain.AccessContext) bool {
	for _, permission := range permissions {
		if s.CheckPermission(ctx, userID, permission, accessCtx).Allowed {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every permission resolves allowed,
// stopping at the first denial.
func (s *AccessService) HasAllPermissions(ctx context.Context, userID string, permissions []string, accessCtx domain.AccessContext) bool {
	for _, permission := range permissions {
		if !s.CheckPermission(ctx, userID, permission, accessCtx).Allowed {
			return false
		}
	}
	return true
}

func (s *AccessService) allow() domain.AccessDecision {
	if s.metrics != nil {
		s.metrics.IncAllowed()
	}
	return domain.AccessDecision{Allowed: true}
}

// grantSnapshot loads the user's grant view, consulting the cache first when
// one is configured and hydrating it on miss.
func (s *AccessService) grantSnapshot(ctx context.Context, userID string) (*domain.GrantSnapshot, error) {
	if s.cache != nil {
		snapshot, err := s.cache.GetGrantSnapshot(ctx, userID)
		if err == nil {
			return snapshot, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("grant snapshot cache lookup failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	direct, err := s.grants.ListDirectGrants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list direct grants: %w", err)
	}

	assignments, err := s.grants.ListEffectiveRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list effective roles: %w", err)
	}

	snapshot := &domain.GrantSnapshot{
		UserID: userID,
		Direct: make([]string, 0, len(direct)),
		Roles:  make([]domain.RoleGrants, 0, len(assignments)),
	}

	for _, grant := range direct {
		snapshot.Direct = append(snapshot.Direct, grant.PermissionName)
	}

	now := s.now()
	for _, assignment := range assignments {
		if !assignment.EffectiveAt(now) {
			continue
		}
		grants, err := s.grants.ListRoleGrants(ctx, assignment.RoleID)
		if err != nil {
			return nil, fmt.Errorf("list role grants for role %s: %w", assignment.RoleID, err)
		}
		snapshot.Roles = append(snapshot.Roles, domain.RoleGrants{
			RoleID:   assignment.RoleID,
			RoleName: assignment.RoleName,
			Grants:   grants,
		})
	}

	if s.cache != nil {
		if err := s.cache.SetGrantSnapshot(ctx, *snapshot); err != nil {
			s.logger.Warn("grant snapshot cache store failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	return snapshot, nil
}
