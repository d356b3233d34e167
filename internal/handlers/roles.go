package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/erprbac/internal/services"
	"github.com/charlesng35/erprbac/pkg/response"
)

// RoleHandler exposes the role store.
type RoleHandler struct {
	roles *services.RoleService
}

func NewRoleHandler(roles *services.RoleService) (*RoleHandler, error) {
	if roles == nil {
		return nil, errors.New("role handler: role service is required")
	}
	return &RoleHandler{roles: roles}, nil
}

type createRoleRequest struct {
	Name        string `json:"name" validate:"required,max=191"`
	Description string `json:"description" validate:"max=1024"`
	Level       int    `json:"level" validate:"required"`
}

type updateRoleRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=191"`
	Description *string `json:"description" validate:"omitempty,max=1024"`
	Level       *int    `json:"level"`
	IsActive    *bool   `json:"is_active"`
}

// GET /api/rbac/roles
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.roles.ListRoles(requestContext(c), services.RoleFilter{Query: strings.TrimSpace(c.Query("q"))})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, roles)
}

// GET /api/rbac/roles/:id
func (h *RoleHandler) Get(c *gin.Context) {
	detail, err := h.roles.GetRole(requestContext(c), roleIDParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, detail)
}

// POST /api/rbac/roles
func (h *RoleHandler) Create(c *gin.Context) {
	var req createRoleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	role, err := h.roles.CreateRole(requestContext(c), services.CreateRoleInput{
		Name:        req.Name,
		Description: req.Description,
		Level:       req.Level,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, role)
}

// PATCH /api/rbac/roles/:id
func (h *RoleHandler) Update(c *gin.Context) {
	var req updateRoleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	role, err := h.roles.UpdateRole(requestContext(c), roleIDParam(c), services.UpdateRoleInput{
		Name:        req.Name,
		Description: req.Description,
		Level:       req.Level,
		IsActive:    req.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// DELETE /api/rbac/roles/:id
func (h *RoleHandler) Delete(c *gin.Context) {
	if err := h.roles.DeleteRole(requestContext(c), roleIDParam(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
