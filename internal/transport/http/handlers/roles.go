package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
	"github.com/BuggPlayer/homeservice-iam/internal/transport/http/middleware"
	"github.com/BuggPlayer/homeservice-iam/internal/usecase"
)

// RoleHandler serves role management and assignment endpoints.
type RoleHandler struct {
	roles *usecase.RoleService
}

// NewRoleHandler builds a RoleHandler backed by the role service.
func NewRoleHandler(roles *usecase.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// ListRoles returns every role in the system.
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roles.ListRoles(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list roles"))
		return
	}

	payload := make([]RolePayload, 0, len(roles))
	for _, role := range roles {
		payload = append(payload, newRolePayload(role))
	}
	c.JSON(http.StatusOK, gin.H{"roles": payload})
}

// GetRole returns a role together with its permission grants.
func (h *RoleHandler) GetRole(c *gin.Context) {
	role, grants, err := h.roles.GetRole(c.Request.Context(), c.Param("roleId"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
		}, http.StatusInternalServerError, "failed to load role")
		return
	}

	permissions := make([]RoleGrantPayload, 0, len(grants))
	for _, grant := range grants {
		permissions = append(permissions, RoleGrantPayload{
			PermissionName: grant.PermissionName,
			Granted:        grant.Granted,
			Conditions:     grant.Conditions,
		})
	}

	c.JSON(http.StatusOK, RoleDetailResponse{
		Role:        newRolePayload(*role),
		Permissions: permissions,
	})
}

// CreateRole creates a new role.
func (h *RoleHandler) CreateRole(c *gin.Context) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req RoleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}

	input := usecase.CreateRoleInput{
		Name:        strings.TrimSpace(req.Name),
		Description: trimmedPtr(req.Description),
	}

	role, err := h.roles.CreateRole(c.Request.Context(), actorID, input)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPermissionDenied, Status: http.StatusForbidden, Message: "insufficient permissions"},
			{Err: usecase.ErrRoleExists, Status: http.StatusConflict, Message: "role already exists"},
		}, http.StatusInternalServerError, "failed to create role")
		return
	}

	c.JSON(http.StatusCreated, newRolePayload(*role))
}

// UpdateRole changes a role's name or description.
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req RoleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}

	input := usecase.CreateRoleInput{
		Name:        strings.TrimSpace(req.Name),
		Description: trimmedPtr(req.Description),
	}

	role, err := h.roles.UpdateRole(c.Request.Context(), actorID, c.Param("roleId"), input)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPermissionDenied, Status: http.StatusForbidden, Message: "insufficient permissions"},
			{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
			{Err: usecase.ErrRoleExists, Status: http.StatusConflict, Message: "role name already in use"},
		}, http.StatusInternalServerError, "failed to update role")
		return
	}

	c.JSON(http.StatusOK, newRolePayload(*role))
}

// DeactivateRole marks a role inactive so it no longer contributes grants.
func (h *RoleHandler) DeactivateRole(c *gin.Context) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	err := h.roles.DeactivateRole(c.Request.Context(), actorID, c.Param("roleId"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPermissionDenied, Status: http.StatusForbidden, Message: "insufficient permissions"},
			{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
		}, http.StatusInternalServerError, "failed to deactivate role")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "role deactivated"})
}

// SetRolePermissions replaces the permission grants attached to a role.
func (h *RoleHandler) SetRolePermissions(c *gin.Context) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req RoleGrantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid grants payload"))
		return
	}

	inputs := make([]usecase.RoleGrantInput, 0, len(req.Permissions))
	for _, entry := range req.Permissions {
		name := strings.TrimSpace(entry.Permission)
		if name == "" {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "permission name cannot be empty"))
			return
		}
		granted := true
		if entry.Granted != nil {
			granted = *entry.Granted
		}
		inputs = append(inputs, usecase.RoleGrantInput{
			PermissionName: name,
			Granted:        granted,
			Conditions:     entry.Conditions,
		})
	}

	grants, err := h.roles.SetRolePermissions(c.Request.Context(), actorID, c.Param("roleId"), inputs)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPermissionDenied, Status: http.StatusForbidden, Message: "insufficient permissions"},
			{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
			{Err: usecase.ErrInvalidPermissionName, Status: http.StatusBadRequest, Message: "unknown permission"},
		}, http.StatusInternalServerError, "failed to update role permissions")
		return
	}

	permissions := make([]RoleGrantPayload, 0, len(grants))
	for _, grant := range grants {
		permissions = append(permissions, RoleGrantPayload{
			PermissionName: grant.PermissionName,
			Granted:        grant.Granted,
			Conditions:     grant.Conditions,
		})
	}
	c.JSON(http.StatusOK, gin.H{"permissions": permissions})
}

// AssignRole assigns a role to a user, optionally with an expiry.
func (h *RoleHandler) AssignRole(c *gin.Context) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req RoleAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid assignment payload"))
		return
	}

	assignment, err := h.roles.AssignRole(c.Request.Context(), actorID, usecase.AssignRoleInput{
		UserID:    strings.TrimSpace(req.UserID),
		RoleName:  strings.TrimSpace(req.RoleName),
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPermissionDenied, Status: http.StatusForbidden, Message: "insufficient permissions"},
			{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusBadRequest, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to assign role")
		return
	}

	c.JSON(http.StatusCreated, newAssignmentPayload(*assignment))
}

// RevokeRole deactivates a user's role assignment.
func (h *RoleHandler) RevokeRole(c *gin.Context) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	userID := c.Param("userId")
	roleName := c.Param("roleName")
	err := h.roles.RevokeRole(c.Request.Context(), actorID, userID, roleName)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPermissionDenied, Status: http.StatusForbidden, Message: "insufficient permissions"},
			{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
		}, http.StatusInternalServerError, "failed to revoke role")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "role revoked"})
}

// GrantDirectPermission grants a permission to a user outside any role.
func (h *RoleHandler) GrantDirectPermission(c *gin.Context) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req DirectGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid grant payload"))
		return
	}

	granted := true
	if req.Granted != nil {
		granted = *req.Granted
	}

	err := h.roles.GrantDirectPermission(c.Request.Context(), actorID,
		strings.TrimSpace(req.UserID), strings.TrimSpace(req.Permission), granted)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPermissionDenied, Status: http.StatusForbidden, Message: "insufficient permissions"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusBadRequest, Message: "user not found"},
			{Err: usecase.ErrInvalidPermissionName, Status: http.StatusBadRequest, Message: "unknown permission"},
		}, http.StatusInternalServerError, "failed to grant permission")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "permission granted"})
}

// ListUserRoles returns the effective role assignments for a user. Access is
// gated upstream: the user themselves or anyone holding user:read.
func (h *RoleHandler) ListUserRoles(c *gin.Context) {
	assignments, err := h.roles.ListUserRoles(c.Request.Context(), c.Param("userId"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusBadRequest, Message: "user id is required"},
		}, http.StatusInternalServerError, "failed to list user roles")
		return
	}

	payload := make([]RoleAssignmentPayload, 0, len(assignments))
	for _, assignment := range assignments {
		payload = append(payload, newAssignmentPayload(assignment))
	}
	c.JSON(http.StatusOK, gin.H{"roles": payload})
}

func newAssignmentPayload(assignment domain.UserRole) RoleAssignmentPayload {
	payload := RoleAssignmentPayload{
		UserID:     assignment.UserID,
		RoleID:     assignment.RoleID,
		RoleName:   assignment.RoleName,
		AssignedAt: assignment.AssignedAt,
		ExpiresAt:  assignment.ExpiresAt,
		IsActive:   assignment.IsActive,
	}
	if assignment.AssignedBy != "" {
		assignedBy := assignment.AssignedBy
		payload.AssignedBy = &assignedBy
	}
	return payload
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
