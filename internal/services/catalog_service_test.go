package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/erprbac/internal/permissions"
)

func TestCatalogService_ListPermissionsOrderingAndFilters(t *testing.T) {
	env := newTestServices(t)
	ctx := context.Background()

	all, err := env.catalog.ListPermissions(ctx, PermissionFilter{})
	require.NoError(t, err)
	require.Len(t, all, len(permissions.GetAll()))
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		key := func(module, resource, action string) string { return module + "\x00" + resource + "\x00" + action }
		require.LessOrEqual(t, key(prev.Module, prev.Resource, prev.Action), key(cur.Module, cur.Resource, cur.Action))
	}

	hr, err := env.catalog.ListPermissions(ctx, PermissionFilter{Module: "hr"})
	require.NoError(t, err)
	require.Len(t, hr, len(permissions.GetByModule("hr")))

	journal, err := env.catalog.ListPermissions(ctx, PermissionFilter{Query: "JOURNAL.POST"})
	require.NoError(t, err)
	require.Len(t, journal, 1)
	require.Equal(t, "accounting.journal.post", journal[0].Code)

	byDescription, err := env.catalog.ListPermissions(ctx, PermissionFilter{Module: "hr", Query: "leave requests"})
	require.NoError(t, err)
	require.Len(t, byDescription, 8)
	for _, perm := range byDescription {
		require.Equal(t, "leave", perm.Resource)
	}

	for _, wildcard := range []string{"_", "%", "%%"} {
		matched, err := env.catalog.ListPermissions(ctx, PermissionFilter{Query: wildcard})
		require.NoError(t, err)
		require.Empty(t, matched, wildcard)
	}
}

func TestCatalogService_FindByModuleAndCode(t *testing.T) {
	env := newTestServices(t)
	ctx := context.Background()

	none, err := env.catalog.FindByModule(ctx, "does-not-exist")
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)

	perm, err := env.catalog.FindByCode(ctx, "admin.role.list")
	require.NoError(t, err)
	require.Equal(t, permissions.IDForCode("admin.role.list"), perm.ID)

	_, err = env.catalog.FindByCode(ctx, "admin.role.explode")
	require.ErrorIs(t, err, ErrPermissionNotFound)

	byID, err := env.catalog.GetPermission(ctx, perm.ID)
	require.NoError(t, err)
	require.Equal(t, "admin.role.list", byID.Code)

	_, err = env.catalog.GetPermission(ctx, "missing")
	require.ErrorIs(t, err, ErrPermissionNotFound)
}

func TestCatalogService_ModulesAndTotals(t *testing.T) {
	env := newTestServices(t)
	ctx := context.Background()

	modules, err := env.catalog.Modules(ctx)
	require.NoError(t, err)
	require.Equal(t, permissions.Modules(), modules)

	totals, err := env.catalog.ModuleTotals(ctx)
	require.NoError(t, err)
	for _, module := range modules {
		require.Equal(t, int64(len(permissions.GetByModule(module))), totals[module], module)
	}
}
