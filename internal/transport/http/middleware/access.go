package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
	"github.com/BuggPlayer/homeservice-iam/internal/usecase"
)

// AccessContextKey is the gin context key holding the evaluated access context.
const AccessContextKey = "access_context"

// ownerParamNames are the route parameters inspected for a resource owner ID.
var ownerParamNames = []string{"userId", "customerId", "providerId"}

// maxConditionBodyBytes caps how much of the request body is buffered for
// condition evaluation.
const maxConditionBodyBytes = 1 << 20

// RequirePermission allows the request only when the authenticated user holds
// the named permission.
func RequirePermission(access *usecase.AccessService, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetAuthenticatedUserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		accessCtx := buildAccessContext(c, userID)
		decision := access.CheckPermission(c.Request.Context(), userID, permission, accessCtx)
		if !decision.Allowed {
			abortDenied(c, decision)
			return
		}

		c.Set(AccessContextKey, accessCtx)
		c.Next()
	}
}

// RequireAnyPermission allows the request when the user holds at least one of
// the named permissions. Permissions are checked in order and evaluation stops
// at the first one granted.
func RequireAnyPermission(access *usecase.AccessService, permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetAuthenticatedUserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		accessCtx := buildAccessContext(c, userID)
		failed := false
		for _, permission := range permissions {
			decision := access.CheckPermission(c.Request.Context(), userID, permission, accessCtx)
			if decision.Allowed {
				c.Set(AccessContextKey, accessCtx)
				c.Next()
				return
			}
			failed = failed || decision.CheckFailed
		}
		if failed {
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				newErrorResponse(c, "permission check failed"))
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden,
			newErrorResponse(c, "insufficient permissions"))
	}
}

// RequireAllPermissions allows the request only when the user holds every one
// of the named permissions.
func RequireAllPermissions(access *usecase.AccessService, permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetAuthenticatedUserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		accessCtx := buildAccessContext(c, userID)
		decisions := access.CheckPermissions(c.Request.Context(), userID, permissions, accessCtx)
		for _, decision := range decisions {
			if !decision.Allowed {
				abortDenied(c, decision)
				return
			}
		}

		c.Set(AccessContextKey, accessCtx)
		c.Next()
	}
}

// RequireOwnershipOrPermission allows the request when the authenticated user
// is the resource owner identified by the ownerParam route parameter or
// carries an administrative user-type tag, and falls back to a permission
// check otherwise.
func RequireOwnershipOrPermission(access *usecase.AccessService, permission, ownerParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetAuthenticatedUserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		accessCtx := buildAccessContext(c, userID)
		ownerID := c.Param(ownerParam)
		if ownerID != "" {
			accessCtx[domain.ContextResourceOwnerID] = ownerID
			if ownerID == userID {
				c.Set(AccessContextKey, accessCtx)
				c.Next()
				return
			}
		}

		if domain.IsAdminType(GetAuthenticatedUserType(c)) {
			c.Set(AccessContextKey, accessCtx)
			c.Next()
			return
		}

		decision := access.CheckPermission(c.Request.Context(), userID, permission, accessCtx)
		if !decision.Allowed {
			abortDenied(c, decision)
			return
		}

		c.Set(AccessContextKey, accessCtx)
		c.Next()
	}
}

// abortDenied maps a denial to 403 and a fail-closed store failure to 500 so
// operators can tell denied apart from broken.
func abortDenied(c *gin.Context, decision domain.AccessDecision) {
	if decision.CheckFailed {
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			newErrorResponse(c, "permission check failed"))
		return
	}
	c.AbortWithStatusJSON(http.StatusForbidden, newErrorResponse(c, decision.Reason))
}

// GetAccessContext retrieves the access context attached by a gate middleware.
func GetAccessContext(c *gin.Context) domain.AccessContext {
	if val, exists := c.Get(AccessContextKey); exists {
		if accessCtx, ok := val.(domain.AccessContext); ok {
			return accessCtx
		}
	}
	return nil
}

// buildAccessContext assembles the condition-evaluation context from the
// request: authenticated identity, resource owner route parameters, and the
// JSON body as resource data.
func buildAccessContext(c *gin.Context, userID string) domain.AccessContext {
	accessCtx := domain.AccessContext{
		domain.ContextUserID: userID,
	}
	if userType := GetAuthenticatedUserType(c); userType != "" {
		accessCtx[domain.ContextUserType] = userType
	}

	for _, name := range ownerParamNames {
		if owner := c.Param(name); owner != "" {
			accessCtx[domain.ContextResourceOwnerID] = owner
			break
		}
	}

	if data := readJSONBody(c); data != nil {
		accessCtx[domain.ContextResourceData] = data
	}

	return accessCtx
}

// readJSONBody buffers the request body for condition evaluation and restores
// it so downstream handlers can still bind it.
func readJSONBody(c *gin.Context) map[string]any {
	if c.Request.Body == nil || c.Request.Method == http.MethodGet {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxConditionBodyBytes))
	if err != nil {
		return nil
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	if len(raw) == 0 {
		return nil
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	return data
}
