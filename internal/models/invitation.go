package models

import "time"

// Invitation statuses. pending is the only non-terminal state; once the
// status leaves pending it never returns.
const (
	InvitationStatusPending  = "pending"
	InvitationStatusAccepted = "accepted"
	InvitationStatusExpired  = "expired"
	InvitationStatusRevoked  = "revoked"
)

// Invitation is a token-bound offer to create an account with a
// predetermined role and property/unit assignment. Only the SHA-256
// digest of the token is stored.
type Invitation struct {
	BaseModel

	TokenHash   string  `gorm:"uniqueIndex;not null" json:"-"`
	Email       string  `gorm:"index" json:"email,omitempty"`
	PhoneNumber string  `json:"phone_number,omitempty"`
	FullName    string  `json:"full_name,omitempty"`
	Role        string  `gorm:"not null" json:"role"`
	PropertyID  string  `gorm:"type:uuid;not null;index" json:"property_id"`
	UnitID      *string `gorm:"type:uuid;index" json:"unit_id,omitempty"`
	InvitedBy   string  `gorm:"type:uuid" json:"invited_by"`

	Status     string     `gorm:"not null;default:'pending';index" json:"status"`
	ExpiresAt  time.Time  `gorm:"index" json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`

	Property *Property `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
	Unit     *Unit     `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
}

// Terminal reports whether the invitation can no longer be accepted.
func (i *Invitation) Terminal() bool {
	return i.Status != InvitationStatusPending
}
