package models

// SuperadminLevel is the reserved role level that bypasses every permission check.
const SuperadminLevel = 99

// Assignable role levels for roles created or updated through the API.
const (
	MinRoleLevel = 1
	MaxRoleLevel = SuperadminLevel - 1
)

type Role struct {
	BaseModel

	Name        string `gorm:"uniqueIndex;size:191;not null" json:"name"`
	Description string `json:"description"`
	Level       int    `gorm:"not null;index" json:"level"`
	IsSystem    bool   `gorm:"<-:create;default:false" json:"is_system"`
	IsActive    bool   `gorm:"default:true" json:"is_active"`
}

// IsSuperadmin reports whether the role sits at or above the bypass level.
func (r Role) IsSuperadmin() bool {
	return r.Level >= SuperadminLevel
}
