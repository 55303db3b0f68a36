package models

// Verification outcomes recorded per gate attempt.
const (
	AccessOutcomeGranted = "granted"
	AccessOutcomeDenied  = "denied"
	AccessOutcomeBanned  = "banned"
)

// AccessLog records the outcome of a single guard verification attempt.
// Denials and ban blocks leave the pass untouched, so this log is the only
// persisted trace of them.
type AccessLog struct {
	BaseModel

	PassID      *string `gorm:"type:uuid;index" json:"pass_id,omitempty"`
	GuardID     string  `gorm:"type:uuid;not null;index" json:"guard_id"`
	PropertyID  *string `gorm:"type:uuid;index" json:"property_id,omitempty"`
	VisitorName string  `json:"visitor_name,omitempty"`
	Code        string  `json:"code"`
	Outcome     string  `gorm:"not null;index" json:"outcome"`
}
