package models

// Permission is a single catalog entry identified by a "<module>.<resource>.<action>" code.
// Rows are appended by the catalog sync and never removed at runtime.
type Permission struct {
	BaseModel

	Code        string `gorm:"uniqueIndex;size:191;not null" json:"code"`
	Module      string `gorm:"size:64;not null;index" json:"module"`
	Resource    string `gorm:"size:64;not null" json:"resource"`
	Action      string `gorm:"size:64;not null" json:"action"`
	Description string `json:"description"`
}
