package models

import "time"

// PropertyGuard assigns a guard account to a property. Created as the
// role-specific side effect of accepting a guard invitation.
type PropertyGuard struct {
	BaseModel

	PropertyID string    `gorm:"type:uuid;not null;index" json:"property_id"`
	GuardID    string    `gorm:"type:uuid;not null;index" json:"guard_id"`
	AssignedAt time.Time `json:"assigned_at"`

	Property *Property `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
}
