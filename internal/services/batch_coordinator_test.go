package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/erprbac/internal/models"
	"github.com/charlesng35/erprbac/internal/permissions"
)

var hrCodes = []string{
	"hr.employee.list",
	"hr.employee.read",
	"hr.employee.create",
	"hr.leave.approve",
	"hr.leave.reject",
	"hr.payroll.process",
	"hr.training.read",
}

func TestBatchCoordinator_GrantModuleCompletesModule(t *testing.T) {
	env := newTestServices(t, withEmptyCatalog())
	ctx := context.Background()
	perms := env.insertPermissions(t, hrCodes...)
	env.insertPermissions(t, "tax.rate.read")
	role := env.createRole(t, "HR Officer", 40)

	for _, perm := range perms[:3] {
		require.NoError(t, env.ledger.Grant(ctx, role.ID, perm.ID))
	}

	result, err := env.batch.GrantModule(ctx, role.ID, "hr")
	require.NoError(t, err)
	require.False(t, result.Bypass)
	require.Len(t, result.Succeeded, 4)
	require.Empty(t, result.Failed)

	counts, err := env.ledger.GrantedCountByModule(ctx, role.ID)
	require.NoError(t, err)
	require.Equal(t, ModuleCount{Granted: 7, Total: 7}, counts["hr"])
	require.Equal(t, ModuleCount{Granted: 0, Total: 1}, counts["tax"])

	again, err := env.batch.GrantModule(ctx, role.ID, "hr")
	require.NoError(t, err)
	require.Empty(t, again.Succeeded)
	require.Empty(t, again.Failed)
}

func TestBatchCoordinator_RevokeModule(t *testing.T) {
	env := newTestServices(t, withEmptyCatalog())
	ctx := context.Background()
	perms := env.insertPermissions(t, hrCodes...)
	tax := env.insertPermissions(t, "tax.rate.read")
	role := env.createRole(t, "HR Officer", 40)

	for _, id := range []string{perms[0].ID, perms[1].ID, tax[0].ID} {
		require.NoError(t, env.ledger.Grant(ctx, role.ID, id))
	}

	result, err := env.batch.RevokeModule(ctx, role.ID, "hr")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{perms[0].ID, perms[1].ID}, result.SucceededIDs())
	require.Empty(t, result.Failed)

	counts, err := env.ledger.GrantedCountByModule(ctx, role.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), counts["hr"].Granted)
	require.Equal(t, int64(1), counts["tax"].Granted)
}

func TestBatchCoordinator_Superadmin(t *testing.T) {
	env := newTestServices(t, withEmptyCatalog())
	ctx := context.Background()
	env.insertPermissions(t, hrCodes...)
	root := env.insertSuperadmin(t, "Root")

	result, err := env.batch.GrantModule(ctx, root.ID, "hr")
	require.NoError(t, err)
	require.True(t, result.Bypass)
	require.Empty(t, result.Succeeded)
	require.Zero(t, env.grantRows(t, root.ID))

	ok, err := env.access.IsPermitted(ctx, root.ID, "hr.leave.approve")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = env.batch.RevokeModule(ctx, root.ID, "hr")
	require.ErrorIs(t, err, ErrSuperadminRevoke)
	require.Zero(t, env.grantRows(t, root.ID))
}

func TestBatchCoordinator_UnknownRoleAndModule(t *testing.T) {
	env := newTestServices(t, withEmptyCatalog())
	ctx := context.Background()
	role := env.createRole(t, "Nobody", 3)

	_, err := env.batch.GrantModule(ctx, "missing", "hr")
	require.ErrorIs(t, err, ErrRoleNotFound)
	_, err = env.batch.RevokeModule(ctx, "missing", "hr")
	require.ErrorIs(t, err, ErrRoleNotFound)

	result, err := env.batch.GrantModule(ctx, role.ID, "nothing")
	require.NoError(t, err)
	require.Empty(t, result.Succeeded)
	require.Empty(t, result.Failed)
}

type flakyLedger struct {
	*GrantLedger
	failing map[string]bool
}

func (f *flakyLedger) Grant(ctx context.Context, roleID, permissionID string) error {
	if f.failing[permissionID] {
		return errors.New("ledger unavailable")
	}
	return f.GrantLedger.Grant(ctx, roleID, permissionID)
}

func TestBatchCoordinator_ReportsPartialFailureForReconciliation(t *testing.T) {
	env := newTestServices(t, withEmptyCatalog())
	ctx := context.Background()
	perms := env.insertPermissions(t, hrCodes...)
	role := env.createRole(t, "HR Officer", 40)

	failing := map[string]bool{perms[1].ID: true, perms[5].ID: true}
	batch, err := NewBatchCoordinator(env.roles, env.catalog, &flakyLedger{GrantLedger: env.ledger, failing: failing}, env.audit, 3)
	require.NoError(t, err)

	view := permissions.NewProvisionalView(nil)
	for _, perm := range perms {
		view.MarkGranted(perm.ID)
	}

	result, err := batch.GrantModule(ctx, role.ID, "hr")
	require.NoError(t, err)
	require.Len(t, result.Succeeded, 5)
	require.ElementsMatch(t, []string{perms[1].ID, perms[5].ID}, result.FailedIDs())
	for _, item := range result.Failed {
		require.Equal(t, "ledger unavailable", item.Error)
	}

	view.Reconcile(result.SucceededIDs(), result.FailedIDs())

	grants, err := env.ledger.ListGrants(ctx, role.ID)
	require.NoError(t, err)
	var granted []string
	for _, perm := range grants {
		granted = append(granted, perm.ID)
	}
	require.ElementsMatch(t, granted, view.Granted())
	require.False(t, view.IsGranted(perms[1].ID))
	require.True(t, view.IsGranted(perms[0].ID))

	logs, _, err := env.audit.List(ctx, AuditListOptions{Filters: AuditFilters{Action: AuditActionModuleGrant}})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "partial", logs[0].Result)
}

func TestBatchCoordinator_AbandonedBatchReportsUnissuedItems(t *testing.T) {
	env := newTestServices(t, withEmptyCatalog())
	perms := env.insertPermissions(t, hrCodes...)
	role := env.createRole(t, "HR Officer", 40)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newBatchResult(role.ID, "hr", BatchOperationGrant)
	env.batch.run(ctx, result, perms, env.ledger.Grant)

	require.Len(t, result.Failed, len(perms))
	require.Zero(t, env.grantRows(t, role.ID))

	var rows []models.RolePermission
	require.NoError(t, env.db.Find(&rows).Error)
	require.Empty(t, rows)
}
