package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog captures a single RBAC mutation. Role and permission references are plain
// columns so entries outlive the rows they describe.
type AuditLog struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	ActorID      *string        `gorm:"size:191;index" json:"actor_id"`
	Action       string         `gorm:"size:64;not null;index" json:"action"`
	RoleID       *string        `gorm:"size:36;index" json:"role_id"`
	PermissionID *string        `gorm:"size:36" json:"permission_id"`
	Result       string         `gorm:"size:32;not null" json:"result"`
	IPAddress    string         `gorm:"size:64" json:"ip_address"`
	UserAgent    string         `json:"user_agent"`
	Metadata     datatypes.JSON `json:"metadata"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "rbac_audit_log"
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
