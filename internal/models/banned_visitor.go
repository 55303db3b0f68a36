package models

// BannedVisitor blocks a visitor name at a property. Matching is by
// case-insensitive substring against the pass's visitor name at
// verification time, not at issuance time.
type BannedVisitor struct {
	BaseModel

	PropertyID  string `gorm:"type:uuid;not null;index" json:"property_id"`
	VisitorName string `gorm:"not null" json:"visitor_name"`
	Reason      string `json:"reason,omitempty"`
	BannedBy    string `gorm:"type:uuid" json:"banned_by"`

	Property *Property `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
}
