package permissions

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/erprbac/internal/models"
)

// Sync persists registered permissions to the backing database. Existing rows keep
// their id; only descriptive columns are refreshed. Rows are never removed.
func Sync(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("permission: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	perms := GetAll()
	if len(perms) == 0 {
		return nil
	}

	tx := db.WithContext(ctx)
	for _, perm := range perms {
		record := models.Permission{
			BaseModel:   models.BaseModel{ID: perm.ID()},
			Code:        perm.Code,
			Module:      perm.Module,
			Resource:    perm.Resource,
			Action:      perm.Action,
			Description: perm.Description,
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"module", "resource", "action", "description", "updated_at"}),
		}).Create(&record).Error; err != nil {
			return fmt.Errorf("permission: sync %s: %w", perm.Code, err)
		}
	}

	return nil
}
