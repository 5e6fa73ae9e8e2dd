package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// RolePayload describes a role returned by the API.
type RolePayload struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	IsActive    bool    `json:"is_active"`
}

// RoleGrantPayload describes one permission attached to a role.
type RoleGrantPayload struct {
	PermissionName string             `json:"permission"`
	Granted        bool               `json:"granted"`
	Conditions     []domain.Condition `json:"conditions,omitempty"`
}

// RoleDetailResponse combines a role with its permission grants.
type RoleDetailResponse struct {
	Role        RolePayload        `json:"role"`
	Permissions []RoleGrantPayload `json:"permissions"`
}

// RoleCreateRequest defines the payload for creating or updating a role.
type RoleCreateRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

// RoleGrantsRequest replaces the permission grants attached to a role.
type RoleGrantsRequest struct {
	Permissions []RoleGrantRequestEntry `json:"permissions" binding:"required"`
}

// RoleGrantRequestEntry is one grant in a RoleGrantsRequest.
type RoleGrantRequestEntry struct {
	Permission string             `json:"permission" binding:"required"`
	Granted    *bool              `json:"granted"`
	Conditions []domain.Condition `json:"conditions"`
}

// RoleAssignRequest assigns a role to a user.
type RoleAssignRequest struct {
	UserID    string     `json:"user_id" binding:"required"`
	RoleName  string     `json:"role_name" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// RoleAssignmentPayload describes a user-role assignment.
type RoleAssignmentPayload struct {
	UserID     string     `json:"user_id"`
	RoleID     string     `json:"role_id"`
	RoleName   string     `json:"role_name,omitempty"`
	AssignedBy *string    `json:"assigned_by,omitempty"`
	AssignedAt time.Time  `json:"assigned_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	IsActive   bool       `json:"is_active"`
}

// DirectGrantRequest grants or revokes a permission directly for a user.
type DirectGrantRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	Permission string `json:"permission" binding:"required"`
	Granted    *bool  `json:"granted"`
}

// PermissionPayload describes a catalog permission.
type PermissionPayload struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Resource    string  `json:"resource"`
	Action      string  `json:"action"`
	Description *string `json:"description,omitempty"`
	IsActive    bool    `json:"is_active"`
}

// PermissionCreateRequest defines the payload for registering a permission.
type PermissionCreateRequest struct {
	Resource    string  `json:"resource" binding:"required"`
	Action      string  `json:"action" binding:"required"`
	Description *string `json:"description"`
}

// ApprovalCreateRequest opens an approval workflow for a user.
type ApprovalCreateRequest struct {
	UserID        string  `json:"user_id" binding:"required"`
	RequestedRole string  `json:"requested_role" binding:"required"`
	Notes         *string `json:"notes"`
}

// ApprovalDecisionRequest carries the reviewer's notes for an approval.
type ApprovalDecisionRequest struct {
	Notes *string `json:"notes"`
}

// ApprovalRejectRequest carries the mandatory rejection reason.
type ApprovalRejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ApprovalPayload describes an approval workflow entry.
type ApprovalPayload struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	RequestedRole string     `json:"requested_role"`
	Status        string     `json:"status"`
	RequestedBy   string     `json:"requested_by,omitempty"`
	ResolvedBy    *string    `json:"resolved_by,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	RequestedAt   time.Time  `json:"requested_at"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	RejectedAt    *time.Time `json:"rejected_at,omitempty"`
}

// PendingApprovalPayload enriches an approval with user display fields.
type PendingApprovalPayload struct {
	ApprovalPayload
	TargetName    string  `json:"target_name"`
	TargetEmail   string  `json:"target_email"`
	RequesterName *string `json:"requester_name,omitempty"`
}

// ApprovalResolutionResponse reports the outcome of an approve or reject call.
type ApprovalResolutionResponse struct {
	Resolved bool   `json:"resolved"`
	Message  string `json:"message"`
}

// AccessCheckRequest asks whether the authenticated user holds permissions.
type AccessCheckRequest struct {
	Permissions []string       `json:"permissions" binding:"required"`
	Context     map[string]any `json:"context"`
}

// AccessCheckResponse reports per-permission decisions.
type AccessCheckResponse struct {
	UserID  string                    `json:"user_id"`
	Results map[string]AccessDecision `json:"results"`
}

// AccessDecision is the outcome of a single permission check.
type AccessDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func newRolePayload(role domain.Role) RolePayload {
	return RolePayload{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		IsActive:    role.IsActive,
	}
}

func newPermissionPayload(p domain.Permission) PermissionPayload {
	return PermissionPayload{
		ID:          p.ID,
		Name:        p.Name,
		Resource:    p.Resource,
		Action:      p.Action,
		Description: p.Description,
		IsActive:    p.IsActive,
	}
}

func newApprovalPayload(a domain.UserApproval) ApprovalPayload {
	return ApprovalPayload{
		ID:            a.ID,
		UserID:        a.UserID,
		RequestedRole: a.RequestedRole,
		Status:        string(a.Status),
		RequestedBy:   a.RequestedBy,
		ResolvedBy:    a.ResolvedBy,
		Notes:         a.Notes,
		RequestedAt:   a.RequestedAt,
		ApprovedAt:    a.ApprovedAt,
		RejectedAt:    a.RejectedAt,
	}
}
