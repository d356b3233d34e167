package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/erprbac/internal/handlers"
	"github.com/charlesng35/erprbac/internal/middleware"
)

func registerRBACRoutes(api *gin.RouterGroup, svc *Services) error {
	roleHandler, err := handlers.NewRoleHandler(svc.Roles)
	if err != nil {
		return err
	}
	permHandler, err := handlers.NewPermissionHandler(svc.Catalog, svc.Ledger, svc.Batches, svc.Access)
	if err != nil {
		return err
	}
	auditHandler, err := handlers.NewAuditHandler(svc.Audit)
	if err != nil {
		return err
	}

	guard := func(code string) gin.HandlerFunc {
		return middleware.RequirePermission(svc.Access, code)
	}

	roles := api.Group("/roles")
	{
		roles.GET("", guard("admin.role.list"), roleHandler.List)
		roles.POST("", guard("admin.role.create"), roleHandler.Create)
		roles.GET("/:id", guard("admin.role.read"), roleHandler.Get)
		roles.PATCH("/:id", guard("admin.role.update"), roleHandler.Update)
		roles.DELETE("/:id", guard("admin.role.delete"), roleHandler.Delete)

		roles.PUT("/:id/permissions/:permissionID", guard("admin.permission.assign"), permHandler.Grant)
		roles.DELETE("/:id/permissions/:permissionID", guard("admin.permission.revoke"), permHandler.Revoke)
		roles.POST("/:id/modules/:module/grant", guard("admin.permission.assign"), permHandler.GrantModule)
		roles.POST("/:id/modules/:module/revoke", guard("admin.permission.revoke"), permHandler.RevokeModule)
		roles.GET("/:id/modules", guard("admin.role.read"), permHandler.ModuleCounts)
		roles.GET("/:id/check", guard("admin.role.read"), permHandler.Check)
		roles.GET("/:id/effective", guard("admin.role.read"), permHandler.Effective)
	}

	api.GET("/permissions", guard("admin.permission.list"), permHandler.List)
	api.GET("/modules", guard("admin.permission.list"), permHandler.Modules)
	api.GET("/audit", guard("admin.audit.list"), auditHandler.List)

	return nil
}
