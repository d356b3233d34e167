package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/erprbac/internal/services"
	appErrors "github.com/charlesng35/erprbac/pkg/errors"
	"github.com/charlesng35/erprbac/pkg/response"
)

// PermissionHandler exposes the catalog, the grant ledger and the evaluator.
type PermissionHandler struct {
	catalog *services.CatalogService
	ledger  *services.GrantLedger
	batches *services.BatchCoordinator
	access  *services.AccessService
}

func NewPermissionHandler(catalog *services.CatalogService, ledger *services.GrantLedger, batches *services.BatchCoordinator, access *services.AccessService) (*PermissionHandler, error) {
	if catalog == nil || ledger == nil || batches == nil || access == nil {
		return nil, errors.New("permission handler: catalog, ledger, batches and access are required")
	}
	return &PermissionHandler{
		catalog: catalog,
		ledger:  ledger,
		batches: batches,
		access:  access,
	}, nil
}

// GET /api/rbac/permissions
func (h *PermissionHandler) List(c *gin.Context) {
	perms, err := h.catalog.ListPermissions(requestContext(c), services.PermissionFilter{
		Module: strings.TrimSpace(c.Query("module")),
		Query:  strings.TrimSpace(c.Query("q")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, perms)
}

// GET /api/rbac/modules
func (h *PermissionHandler) Modules(c *gin.Context) {
	modules, err := h.catalog.Modules(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, modules)
}

// PUT /api/rbac/roles/:id/permissions/:permissionID
func (h *PermissionHandler) Grant(c *gin.Context) {
	roleID, permissionID := roleIDParam(c), c.Param("permissionID")
	if err := h.ledger.Grant(requestContext(c), roleID, permissionID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"role_id":       roleID,
		"permission_id": permissionID,
		"granted":       true,
	})
}

// DELETE /api/rbac/roles/:id/permissions/:permissionID
func (h *PermissionHandler) Revoke(c *gin.Context) {
	roleID, permissionID := roleIDParam(c), c.Param("permissionID")
	if err := h.ledger.Revoke(requestContext(c), roleID, permissionID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"role_id":       roleID,
		"permission_id": permissionID,
		"granted":       false,
	})
}

// POST /api/rbac/roles/:id/modules/:module/grant
func (h *PermissionHandler) GrantModule(c *gin.Context) {
	result, err := h.batches.GrantModule(requestContext(c), roleIDParam(c), c.Param("module"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Partial(c, result, len(result.Failed))
}

// POST /api/rbac/roles/:id/modules/:module/revoke
func (h *PermissionHandler) RevokeModule(c *gin.Context) {
	result, err := h.batches.RevokeModule(requestContext(c), roleIDParam(c), c.Param("module"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Partial(c, result, len(result.Failed))
}

// GET /api/rbac/roles/:id/modules
func (h *PermissionHandler) ModuleCounts(c *gin.Context) {
	counts, err := h.ledger.GrantedCountByModule(requestContext(c), roleIDParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, counts)
}

// GET /api/rbac/roles/:id/check?code=
func (h *PermissionHandler) Check(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		response.Error(c, appErrors.NewValidation("code is required"))
		return
	}

	roleID := roleIDParam(c)
	allowed, err := h.access.IsPermitted(requestContext(c), roleID, code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"role_id":   roleID,
		"code":      code,
		"permitted": allowed,
	})
}

// GET /api/rbac/roles/:id/effective
func (h *PermissionHandler) Effective(c *gin.Context) {
	perms, err := h.access.EffectivePermissions(requestContext(c), roleIDParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, perms)
}
