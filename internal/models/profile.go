package models

import "time"

// Profile is the user-facing record tied one-to-one to an Account. Its ID
// is the account ID, so the pair forms a single logical identity.
type Profile struct {
	ID          string  `gorm:"primaryKey;type:uuid" json:"id"`
	Email       string  `gorm:"index" json:"email"`
	FullName    string  `gorm:"not null" json:"full_name"`
	PhoneNumber string  `json:"phone_number"`
	Role        string  `gorm:"not null;index" json:"role"`
	PropertyID  *string `gorm:"type:uuid;index" json:"property_id,omitempty"`
	UnitID      *string `gorm:"type:uuid;index" json:"unit_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Unit     *Unit     `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
	Property *Property `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
}
