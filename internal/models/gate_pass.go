package models

import "time"

// Gate pass statuses. "expired" is derived from ValidUntil and never
// persisted on the row.
const (
	PassStatusActive     = "active"
	PassStatusUsed       = "used"
	PassStatusCheckedIn  = "checked_in"
	PassStatusCheckedOut = "checked_out"
	PassStatusRevoked    = "revoked"
)

// Gate pass types.
const (
	PassTypeSingleUse = "single_use"
	PassTypeRecurring = "recurring"
)

// GatePass is a time-bound visitor access credential identified by a
// short code. Single-use passes transition active -> used; recurring
// passes transition active -> checked_in -> checked_out.
type GatePass struct {
	BaseModel

	UnitID      string  `gorm:"type:uuid;not null;index" json:"unit_id"`
	IssuerID    string  `gorm:"type:uuid;not null;index" json:"issuer_id"`
	GuardID     *string `gorm:"type:uuid" json:"guard_id,omitempty"`
	VisitorName string  `json:"visitor_name,omitempty"`

	AccessCode string `gorm:"not null;index" json:"access_code"`
	PassType   string `gorm:"not null;default:'single_use'" json:"pass_type"`
	Status     string `gorm:"not null;default:'active';index" json:"status"`

	ValidFrom  time.Time  `gorm:"not null" json:"valid_from"`
	ValidUntil time.Time  `gorm:"not null;index" json:"valid_until"`
	EntryTime  *time.Time `json:"entry_time,omitempty"`
	ExitTime   *time.Time `json:"exit_time,omitempty"`

	Unit *Unit `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
}

// Terminal reports whether the pass can no longer change state.
func (p *GatePass) Terminal() bool {
	switch p.Status {
	case PassStatusUsed, PassStatusCheckedOut, PassStatusRevoked:
		return true
	}
	return false
}

// Expired reports whether the pass validity window has ended at the given time.
func (p *GatePass) Expired(now time.Time) bool {
	return p.ValidUntil.Before(now)
}
