package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BuggPlayer/homeservice-iam/internal/infra/config"
	"github.com/BuggPlayer/homeservice-iam/internal/infra/security"
	"github.com/BuggPlayer/homeservice-iam/internal/transport/http/handlers"
	"github.com/BuggPlayer/homeservice-iam/internal/transport/http/middleware"
	"github.com/BuggPlayer/homeservice-iam/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Access      *usecase.AccessService
	Roles       *usecase.RoleService
	Permissions *usecase.PermissionService
	Approvals   *usecase.ApprovalService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Metrics  *middleware.HTTPMetrics
	Services ServiceSet
	Verifier *security.TokenVerifier
	Database DatabaseChecker
	Cache    CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.Metrics.Handler())
	r.Use(middleware.CORS([]string{"*"}))

	authMiddleware := middleware.RequireAuth(deps.Verifier)

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	access := deps.Services.Access

	api := r.Group("/api/v1")
	{
		roleHandler := handlers.NewRoleHandler(deps.Services.Roles)

		roleGroup := api.Group("/roles", authMiddleware)
		roleGroup.GET("", middleware.RequireAnyPermission(access,
			usecase.PermissionRoleManage, usecase.PermissionRoleAssign), roleHandler.ListRoles)
		roleGroup.GET("/:roleId", middleware.RequireAnyPermission(access,
			usecase.PermissionRoleManage, usecase.PermissionRoleAssign), roleHandler.GetRole)
		roleGroup.POST("", roleHandler.CreateRole)
		roleGroup.PUT("/:roleId", roleHandler.UpdateRole)
		roleGroup.DELETE("/:roleId", roleHandler.DeactivateRole)
		roleGroup.PUT("/:roleId/permissions", roleHandler.SetRolePermissions)
		roleGroup.POST("/assign", roleHandler.AssignRole)

		grantGroup := api.Group("/grants", authMiddleware)
		grantGroup.POST("/direct", roleHandler.GrantDirectPermission)

		userGroup := api.Group("/users", authMiddleware)
		userGroup.GET("/:userId/roles",
			middleware.RequireOwnershipOrPermission(access, usecase.PermissionUserRead, "userId"),
			roleHandler.ListUserRoles)
		userGroup.DELETE("/:userId/roles/:roleName", roleHandler.RevokeRole)

		permissionHandler := handlers.NewPermissionHandler(deps.Services.Permissions)

		permissionGroup := api.Group("/permissions", authMiddleware)
		permissionGroup.GET("", middleware.RequireAnyPermission(access,
			usecase.PermissionRoleManage, usecase.PermissionCatalogManage), permissionHandler.ListPermissions)
		permissionGroup.POST("", permissionHandler.CreatePermission)

		approvalHandler := handlers.NewApprovalHandler(deps.Services.Approvals)

		approvalGroup := api.Group("/approvals", authMiddleware)
		approvalGroup.POST("",
			middleware.RequirePermission(access, usecase.PermissionUserApprove),
			approvalHandler.CreateApproval)
		approvalGroup.GET("/pending",
			middleware.RequirePermission(access, usecase.PermissionUserApprove),
			approvalHandler.ListPendingApprovals)
		approvalGroup.GET("/:approvalId",
			middleware.RequirePermission(access, usecase.PermissionUserApprove),
			approvalHandler.GetApproval)
		approvalGroup.POST("/:approvalId/approve",
			middleware.RequirePermission(access, usecase.PermissionUserApprove),
			approvalHandler.ApproveUser)
		approvalGroup.POST("/:approvalId/reject",
			middleware.RequirePermission(access, usecase.PermissionUserApprove),
			approvalHandler.RejectUser)

		accessHandler := handlers.NewAccessHandler(access)

		accessGroup := api.Group("/access", authMiddleware)
		accessGroup.POST("/check", accessHandler.CheckPermissions)
	}

	return r
}
