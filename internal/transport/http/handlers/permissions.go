package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/BuggPlayer/homeservice-iam/internal/transport/http/middleware"
	"github.com/BuggPlayer/homeservice-iam/internal/usecase"
)

// PermissionHandler serves the permission catalog endpoints.
type PermissionHandler struct {
	permissions *usecase.PermissionService
}

// NewPermissionHandler builds a PermissionHandler backed by the catalog service.
func NewPermissionHandler(permissions *usecase.PermissionService) *PermissionHandler {
	return &PermissionHandler{permissions: permissions}
}

// ListPermissions returns the permission catalog ordered by resource and action.
func (h *PermissionHandler) ListPermissions(c *gin.Context) {
	permissions, err := h.permissions.ListPermissions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list permissions"))
		return
	}

	payload := make([]PermissionPayload, 0, len(permissions))
	for _, permission := range permissions {
		payload = append(payload, newPermissionPayload(permission))
	}
	c.JSON(http.StatusOK, gin.H{"permissions": payload})
}

// CreatePermission registers a new permission in the catalog.
func (h *PermissionHandler) CreatePermission(c *gin.Context) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req PermissionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid permission payload"))
		return
	}

	permission, err := h.permissions.CreatePermission(c.Request.Context(), actorID, usecase.CreatePermissionInput{
		Resource:    strings.TrimSpace(req.Resource),
		Action:      strings.TrimSpace(req.Action),
		Description: req.Description,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPermissionDenied, Status: http.StatusForbidden, Message: "insufficient permissions"},
			{Err: usecase.ErrPermissionExists, Status: http.StatusConflict, Message: "permission already exists"},
			{Err: usecase.ErrInvalidPermissionName, Status: http.StatusBadRequest, Message: "permission name must be resource:action"},
		}, http.StatusInternalServerError, "failed to create permission")
		return
	}

	c.JSON(http.StatusCreated, newPermissionPayload(*permission))
}
