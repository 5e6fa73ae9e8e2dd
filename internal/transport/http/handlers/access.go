package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
	"github.com/BuggPlayer/homeservice-iam/internal/transport/http/middleware"
	"github.com/BuggPlayer/homeservice-iam/internal/usecase"
)

// AccessHandler exposes permission checks for other services and UIs.
type AccessHandler struct {
	access *usecase.AccessService
}

// NewAccessHandler builds an AccessHandler backed by the access service.
func NewAccessHandler(access *usecase.AccessService) *AccessHandler {
	return &AccessHandler{access: access}
}

// CheckPermissions evaluates the requested permissions for the authenticated
// user and reports a per-permission decision. Caller-supplied context fields
// extend the identity context but cannot override it.
func (h *AccessHandler) CheckPermissions(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req AccessCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid check payload"))
		return
	}
	if len(req.Permissions) == 0 {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "at least one permission is required"))
		return
	}

	accessCtx := domain.AccessContext{}
	for key, value := range req.Context {
		accessCtx[key] = value
	}
	accessCtx[domain.ContextUserID] = userID
	if userType := middleware.GetAuthenticatedUserType(c); userType != "" {
		accessCtx[domain.ContextUserType] = userType
	}

	decisions := h.access.CheckPermissions(c.Request.Context(), userID, req.Permissions, accessCtx)

	results := make(map[string]AccessDecision, len(decisions))
	for permission, decision := range decisions {
		result := AccessDecision{Allowed: decision.Allowed}
		if !decision.Allowed {
			result.Reason = decision.Reason
		}
		results[permission] = result
	}

	c.JSON(http.StatusOK, AccessCheckResponse{UserID: userID, Results: results})
}
