package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	testutil "github.com/charlesng35/erprbac/internal/database/testutil"
	"github.com/charlesng35/erprbac/internal/models"
	"github.com/charlesng35/erprbac/internal/services"
)

func TestSweepOrphanGrants(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	role := &models.Role{Name: "Clerk", Level: 10, IsActive: true}
	require.NoError(t, db.Create(role).Error)
	perm := &models.Permission{Code: "sales.order.read", Module: "sales", Resource: "order", Action: "read"}
	require.NoError(t, db.Create(perm).Error)
	require.NoError(t, db.Create(&models.RolePermission{RoleID: role.ID, PermissionID: perm.ID}).Error)

	insertOrphan(t, db, "missing-role", perm.ID)

	removed, err := SweepOrphanGrants(context.Background(), db)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	var grants []models.RolePermission
	require.NoError(t, db.Find(&grants).Error)
	require.Len(t, grants, 1)
	require.Equal(t, role.ID, grants[0].RoleID)

	removed, err = SweepOrphanGrants(context.Background(), db)
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	auditSvc, err := services.NewAuditService(db)
	require.NoError(t, err)

	require.NoError(t, auditSvc.Log(context.Background(), services.AuditEntry{
		Action: services.AuditActionRoleCreate,
		Result: "success",
	}))
	var stale models.AuditLog
	require.NoError(t, db.First(&stale).Error)
	require.NoError(t, db.Model(&stale).Update("created_at", time.Now().AddDate(0, 0, -10)).Error)

	require.NoError(t, auditSvc.Log(context.Background(), services.AuditEntry{
		Action: services.AuditActionRoleUpdate,
		Result: "success",
	}))

	perm := &models.Permission{Code: "hr.leave.approve", Module: "hr", Resource: "leave", Action: "approve"}
	require.NoError(t, db.Create(perm).Error)
	insertOrphan(t, db, "gone", perm.ID)

	c := NewCleaner(db, auditSvc,
		WithAuditRetentionDays(7),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)
	require.NoError(t, c.RunOnce(context.Background()))

	var logs []models.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	require.Equal(t, services.AuditActionRoleUpdate, logs[0].Action)

	var grantCount int64
	require.NoError(t, db.Model(&models.RolePermission{}).Count(&grantCount).Error)
	require.Zero(t, grantCount)
}

func TestCleanerStartRejectsBadSchedule(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	auditSvc, err := services.NewAuditService(db)
	require.NoError(t, err)

	c := NewCleaner(db, auditSvc, WithAuditSchedule("not a schedule"))
	require.Error(t, c.Start())
}

func TestCleanerShutdown(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	auditSvc, err := services.NewAuditService(db)
	require.NoError(t, err)

	c := NewCleaner(db, auditSvc)
	require.NoError(t, c.Start())
	require.NoError(t, c.Shutdown(context.Background()))
}

func TestCleanerWithoutDependencies(t *testing.T) {
	c := NewCleaner(nil, nil)
	require.NoError(t, c.Start())
	require.NoError(t, c.RunOnce(context.Background()))
}

func insertOrphan(t *testing.T, db *gorm.DB, roleID, permissionID string) {
	t.Helper()
	require.NoError(t, db.Exec("PRAGMA foreign_keys = OFF").Error)
	defer func() {
		require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	}()
	require.NoError(t, db.Create(&models.RolePermission{RoleID: roleID, PermissionID: permissionID}).Error)
}
