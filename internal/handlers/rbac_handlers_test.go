package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/erprbac/internal/handlers/testutil"
	"github.com/charlesng35/erprbac/internal/models"
	"github.com/charlesng35/erprbac/internal/permissions"
	"github.com/charlesng35/erprbac/internal/services"
)

func TestRBACRoutesRequireCallerRole(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodGet, "/api/rbac/roles", nil, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.Request(http.MethodGet, "/api/rbac/roles", nil, "no-such-role")
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.Request(http.MethodGet, "/api/rbac/roles", nil, testutil.StaffRoleID)
	require.Equal(t, http.StatusForbidden, resp.Code)
	payload := testutil.DecodeResponse(t, resp)
	require.Equal(t, "FORBIDDEN", payload.Error.Code)

	resp = env.Request(http.MethodGet, "/api/rbac/roles", nil, testutil.AdministratorRoleID)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodGet, "/api/rbac/roles", nil, testutil.SuperadminRoleID)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func TestRoleHandler_CRUD(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := testutil.AdministratorRoleID

	created := env.Request(http.MethodPost, "/api/rbac/roles", map[string]any{
		"name":        "Accountant",
		"description": "Posts journals",
		"level":       40,
	}, admin)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())

	var role models.Role
	testutil.DecodeInto(t, testutil.DecodeResponse(t, created).Data, &role)
	require.NotEmpty(t, role.ID)
	require.False(t, role.IsSystem)
	require.True(t, role.IsActive)
	require.Equal(t, 40, role.Level)

	dup := env.Request(http.MethodPost, "/api/rbac/roles", map[string]any{"name": "Accountant", "level": 30}, admin)
	require.Equal(t, http.StatusBadRequest, dup.Code)
	require.Equal(t, "ROLE_NAME_TAKEN", testutil.DecodeResponse(t, dup).Error.Code)

	reserved := env.Request(http.MethodPost, "/api/rbac/roles", map[string]any{"name": "Root", "level": 99}, admin)
	require.Equal(t, http.StatusBadRequest, reserved.Code)
	require.Equal(t, "RESERVED_ROLE_LEVEL", testutil.DecodeResponse(t, reserved).Error.Code)

	list := env.Request(http.MethodGet, "/api/rbac/roles", nil, admin)
	require.Equal(t, http.StatusOK, list.Code)
	var roles []models.Role
	testutil.DecodeInto(t, testutil.DecodeResponse(t, list).Data, &roles)
	require.Len(t, roles, 4)
	require.Equal(t, "Superadmin", roles[0].Name)
	require.Equal(t, "Staff", roles[len(roles)-1].Name)

	filtered := env.Request(http.MethodGet, "/api/rbac/roles?q=journal", nil, admin)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, filtered).Data, &roles)
	require.Len(t, roles, 1)
	require.Equal(t, role.ID, roles[0].ID)

	patched := env.Request(http.MethodPatch, "/api/rbac/roles/"+role.ID, map[string]any{
		"level":     45,
		"is_active": false,
	}, admin)
	require.Equal(t, http.StatusOK, patched.Code, patched.Body.String())
	var updated models.Role
	testutil.DecodeInto(t, testutil.DecodeResponse(t, patched).Data, &updated)
	require.Equal(t, 45, updated.Level)
	require.False(t, updated.IsActive)
	require.Equal(t, "Accountant", updated.Name)

	badLevel := env.Request(http.MethodPatch, "/api/rbac/roles/"+role.ID, map[string]any{"level": 0}, admin)
	require.Equal(t, http.StatusBadRequest, badLevel.Code)

	get := env.Request(http.MethodGet, "/api/rbac/roles/"+role.ID, nil, admin)
	require.Equal(t, http.StatusOK, get.Code)
	var detail services.RoleDetail
	testutil.DecodeInto(t, testutil.DecodeResponse(t, get).Data, &detail)
	require.Equal(t, role.ID, detail.ID)
	require.Empty(t, detail.Permissions)

	deleted := env.Request(http.MethodDelete, "/api/rbac/roles/"+role.ID, nil, admin)
	require.Equal(t, http.StatusOK, deleted.Code)

	missing := env.Request(http.MethodGet, "/api/rbac/roles/"+role.ID, nil, admin)
	require.Equal(t, http.StatusNotFound, missing.Code)
	require.Equal(t, "ROLE_NOT_FOUND", testutil.DecodeResponse(t, missing).Error.Code)

	system := env.Request(http.MethodDelete, "/api/rbac/roles/"+testutil.StaffRoleID, nil, admin)
	require.Equal(t, http.StatusForbidden, system.Code)
	require.Equal(t, "SYSTEM_ROLE_PROTECTED", testutil.DecodeResponse(t, system).Error.Code)
}

func TestRoleHandler_CreateValidation(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := testutil.AdministratorRoleID

	resp := env.Request(http.MethodPost, "/api/rbac/roles", map[string]any{"level": 10}, admin)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	payload := testutil.DecodeResponse(t, resp)
	require.Equal(t, "VALIDATION_ERROR", payload.Error.Code)
	require.Contains(t, payload.Error.Message, "name is required")

	resp = env.Request(http.MethodPost, "/api/rbac/roles", "not-an-object", admin)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "BAD_REQUEST", testutil.DecodeResponse(t, resp).Error.Code)
}

func TestPermissionHandler_GrantRevokeAndCheck(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := testutil.AdministratorRoleID
	clerk := env.CreateRole("Clerk", 20)
	permID := env.PermissionID("accounting.journal.post")

	check := func() bool {
		resp := env.Request(http.MethodGet, "/api/rbac/roles/"+clerk.ID+"/check?code=accounting.journal.post", nil, admin)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		var body struct {
			Permitted bool `json:"permitted"`
		}
		testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &body)
		return body.Permitted
	}

	require.False(t, check())

	path := fmt.Sprintf("/api/rbac/roles/%s/permissions/%s", clerk.ID, permID)
	for i := 0; i < 2; i++ {
		resp := env.Request(http.MethodPut, path, nil, admin)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	}
	require.True(t, check())

	var grants int64
	require.NoError(t, env.DB.Model(&models.RolePermission{}).Where("role_id = ?", clerk.ID).Count(&grants).Error)
	require.Equal(t, int64(1), grants)

	for i := 0; i < 2; i++ {
		resp := env.Request(http.MethodDelete, path, nil, admin)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	}
	require.False(t, check())

	unknown := env.Request(http.MethodPut, fmt.Sprintf("/api/rbac/roles/%s/permissions/%s", clerk.ID, "missing"), nil, admin)
	require.Equal(t, http.StatusNotFound, unknown.Code)
	require.Equal(t, "PERMISSION_NOT_FOUND", testutil.DecodeResponse(t, unknown).Error.Code)

	noCode := env.Request(http.MethodGet, "/api/rbac/roles/"+clerk.ID+"/check", nil, admin)
	require.Equal(t, http.StatusBadRequest, noCode.Code)

	unknownCode := env.Request(http.MethodGet, "/api/rbac/roles/"+testutil.SuperadminRoleID+"/check?code=nope.nothing.here", nil, admin)
	require.Equal(t, http.StatusOK, unknownCode.Code)
	var body struct {
		Permitted bool `json:"permitted"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, unknownCode).Data, &body)
	require.True(t, body.Permitted)
}

func TestPermissionHandler_SuperadminGrantsAreImplicit(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := testutil.AdministratorRoleID
	path := fmt.Sprintf("/api/rbac/roles/%s/permissions/%s", testutil.SuperadminRoleID, env.PermissionID("hr.leave.approve"))

	grant := env.Request(http.MethodPut, path, nil, admin)
	require.Equal(t, http.StatusOK, grant.Code, grant.Body.String())

	var grants int64
	require.NoError(t, env.DB.Model(&models.RolePermission{}).Where("role_id = ?", testutil.SuperadminRoleID).Count(&grants).Error)
	require.Zero(t, grants)

	revoke := env.Request(http.MethodDelete, path, nil, admin)
	require.Equal(t, http.StatusForbidden, revoke.Code, revoke.Body.String())
	require.Equal(t, "SUPERADMIN_REVOKE", testutil.DecodeResponse(t, revoke).Error.Code)
}

func TestPermissionHandler_ModuleBatches(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := testutil.AdministratorRoleID
	manager := env.CreateRole("HR Manager", 50)
	hrTotal := len(permissions.GetByModule("hr"))
	require.NotZero(t, hrTotal)

	// Pre-grant one permission so the batch only issues the remainder.
	resp := env.Request(http.MethodPut, fmt.Sprintf("/api/rbac/roles/%s/permissions/%s", manager.ID, env.PermissionID("hr.leave.approve")), nil, admin)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = env.Request(http.MethodPost, "/api/rbac/roles/"+manager.ID+"/modules/hr/grant", nil, admin)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var result services.BatchResult
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &result)
	require.Len(t, result.Succeeded, hrTotal-1)
	require.Empty(t, result.Failed)
	require.False(t, result.Bypass)

	counts := env.Request(http.MethodGet, "/api/rbac/roles/"+manager.ID+"/modules", nil, admin)
	require.Equal(t, http.StatusOK, counts.Code)
	var byModule map[string]services.ModuleCount
	testutil.DecodeInto(t, testutil.DecodeResponse(t, counts).Data, &byModule)
	require.Equal(t, int64(hrTotal), byModule["hr"].Granted)
	require.Equal(t, int64(hrTotal), byModule["hr"].Total)
	require.Zero(t, byModule["sales"].Granted)
	require.Len(t, byModule, len(permissions.Modules()))

	resp = env.Request(http.MethodPost, "/api/rbac/roles/"+manager.ID+"/modules/hr/revoke", nil, admin)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &result)
	require.Len(t, result.Succeeded, hrTotal)

	counts = env.Request(http.MethodGet, "/api/rbac/roles/"+manager.ID+"/modules", nil, admin)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, counts).Data, &byModule)
	require.Zero(t, byModule["hr"].Granted)

	bypass := env.Request(http.MethodPost, "/api/rbac/roles/"+testutil.SuperadminRoleID+"/modules/hr/grant", nil, admin)
	require.Equal(t, http.StatusOK, bypass.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, bypass).Data, &result)
	require.True(t, result.Bypass)
	require.Empty(t, result.Succeeded)

	forbidden := env.Request(http.MethodPost, "/api/rbac/roles/"+testutil.SuperadminRoleID+"/modules/hr/revoke", nil, admin)
	require.Equal(t, http.StatusForbidden, forbidden.Code)
	require.Equal(t, "SUPERADMIN_REVOKE", testutil.DecodeResponse(t, forbidden).Error.Code)
}

func TestPermissionHandler_ListAndEffective(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := testutil.AdministratorRoleID

	resp := env.Request(http.MethodGet, "/api/rbac/permissions?module=hr", nil, admin)
	require.Equal(t, http.StatusOK, resp.Code)
	var perms []models.Permission
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &perms)
	require.Len(t, perms, len(permissions.GetByModule("hr")))
	for _, perm := range perms {
		require.Equal(t, "hr", perm.Module)
	}

	resp = env.Request(http.MethodGet, "/api/rbac/permissions?q=JOURNAL.POST", nil, admin)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &perms)
	require.NotEmpty(t, perms)
	require.Equal(t, "accounting.journal.post", perms[0].Code)

	resp = env.Request(http.MethodGet, "/api/rbac/modules", nil, admin)
	require.Equal(t, http.StatusOK, resp.Code)
	var modules []string
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &modules)
	require.ElementsMatch(t, permissions.Modules(), modules)

	resp = env.Request(http.MethodGet, "/api/rbac/roles/"+testutil.SuperadminRoleID+"/effective", nil, admin)
	require.Equal(t, http.StatusOK, resp.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &perms)
	require.Len(t, perms, len(permissions.GetAll()))

	resp = env.Request(http.MethodGet, "/api/rbac/roles/"+testutil.StaffRoleID+"/effective", nil, admin)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &perms)
	require.Len(t, perms, len(permissions.GetByModule("profile")))
}

func TestAuditHandler_ListsMutations(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := testutil.AdministratorRoleID

	resp := env.Request(http.MethodPost, "/api/rbac/roles", map[string]any{"name": "Buyer", "level": 15}, admin)
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = env.Request(http.MethodGet, "/api/rbac/audit?action=role.create&per_page=10", nil, admin)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	payload := testutil.DecodeResponse(t, resp)
	require.NotNil(t, payload.Meta)
	require.Equal(t, 1, payload.Meta.Total)
	require.Equal(t, 10, payload.Meta.PerPage)

	var logs []models.AuditLog
	testutil.DecodeInto(t, payload.Data, &logs)
	require.Len(t, logs, 1)
	require.Equal(t, services.AuditActionRoleCreate, logs[0].Action)
	require.NotNil(t, logs[0].ActorID)
	require.Equal(t, "actor-"+admin, *logs[0].ActorID)

	resp = env.Request(http.MethodGet, "/api/rbac/audit", nil, testutil.StaffRoleID)
	require.Equal(t, http.StatusForbidden, resp.Code)
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = env.Request(http.MethodGet, "/api/rbac/nowhere", nil, testutil.AdministratorRoleID)
	require.Equal(t, http.StatusNotFound, resp.Code)
}
