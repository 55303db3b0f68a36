package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Account roles.
const (
	RoleSuperadmin = "superadmin"
	RoleAdmin      = "admin"
	RoleTenant     = "tenant"
	RoleGuard      = "guard"
)

// Account is an authentication identity. The role is duplicated into
// Metadata so downstream consumers of the raw identity record can read it
// without joining the profile table.
type Account struct {
	ID       string         `gorm:"primaryKey;type:uuid" json:"id"`
	Email    string         `gorm:"uniqueIndex;not null" json:"email"`
	Password string         `gorm:"not null" json:"-"`
	Role     string         `gorm:"not null;index" json:"role"`
	Metadata datatypes.JSON `json:"metadata,omitempty"`

	IsActive    bool       `gorm:"default:true" json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
