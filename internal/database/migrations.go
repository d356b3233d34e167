package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/erprbac/internal/models"
	"github.com/charlesng35/erprbac/internal/permissions"
)

var systemRoleNamespace = uuid.MustParse("0b7f3c52-8e4d-5a1f-b6c9-2d4e8a7f1c30")

// Identifiers of the seeded system roles.
var (
	SuperadminRoleID    = uuid.NewSHA1(systemRoleNamespace, []byte("superadmin")).String()
	AdministratorRoleID = uuid.NewSHA1(systemRoleNamespace, []byte("administrator")).String()
	StaffRoleID         = uuid.NewSHA1(systemRoleNamespace, []byte("staff")).String()
)

type systemRole struct {
	role    models.Role
	modules []string // modules granted in full when the role is first created
}

func systemRoles() []systemRole {
	return []systemRole{
		{
			role: models.Role{
				BaseModel:   models.BaseModel{ID: SuperadminRoleID},
				Name:        "Superadmin",
				Description: "Unrestricted access to every module",
				Level:       models.SuperadminLevel,
				IsSystem:    true,
				IsActive:    true,
			},
		},
		{
			role: models.Role{
				BaseModel:   models.BaseModel{ID: AdministratorRoleID},
				Name:        "Administrator",
				Description: "Manages roles and permission assignments",
				Level:       90,
				IsSystem:    true,
				IsActive:    true,
			},
			modules: []string{"admin"},
		},
		{
			role: models.Role{
				BaseModel:   models.BaseModel{ID: StaffRoleID},
				Name:        "Staff",
				Description: "Default role for employees",
				Level:       10,
				IsSystem:    true,
				IsActive:    true,
			},
			modules: []string{"profile"},
		},
	}
}

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.AuditLog{},
	)
}

// SeedData syncs the permission catalog and creates the system roles. Default grants
// are only applied when a system role is created so later revocations survive restarts.
func SeedData(db *gorm.DB) error {
	ctx := context.Background()

	if err := permissions.Sync(ctx, db); err != nil {
		return err
	}

	for _, seed := range systemRoles() {
		role := seed.role

		var existing int64
		if err := db.WithContext(ctx).Model(&models.Role{}).Where("id = ?", role.ID).Count(&existing).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", role.Name, err)
		}
		if existing > 0 {
			continue
		}

		if err := db.WithContext(ctx).Create(&role).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", role.Name, err)
		}
		if err := seedModuleGrants(ctx, db, role.ID, seed.modules); err != nil {
			return fmt.Errorf("seed grants for %s: %w", role.Name, err)
		}
	}

	return nil
}

func seedModuleGrants(ctx context.Context, db *gorm.DB, roleID string, modules []string) error {
	if len(modules) == 0 {
		return nil
	}

	var grants []models.RolePermission
	for _, module := range modules {
		for _, perm := range permissions.GetByModule(strings.TrimSpace(module)) {
			grants = append(grants, models.RolePermission{RoleID: roleID, PermissionID: perm.ID()})
		}
	}
	if len(grants) == 0 {
		return nil
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&grants).Error
}
