package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RolePermission records an explicit grant of one permission to one role.
type RolePermission struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	RoleID       string    `gorm:"size:36;not null;uniqueIndex:idx_role_permissions_pair,priority:1" json:"role_id"`
	PermissionID string    `gorm:"size:36;not null;uniqueIndex:idx_role_permissions_pair,priority:2;index" json:"permission_id"`
	GrantedAt    time.Time `gorm:"not null" json:"granted_at"`
	GrantedBy    *string   `gorm:"size:191" json:"granted_by,omitempty"`

	Role       *Role       `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE" json:"-"`
	Permission *Permission `gorm:"foreignKey:PermissionID;constraint:OnDelete:CASCADE" json:"permission,omitempty"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}

func (g *RolePermission) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.GrantedAt.IsZero() {
		g.GrantedAt = time.Now().UTC()
	}
	return nil
}
