package models

// Unit is a tenant-addressable space inside a property.
type Unit struct {
	BaseModel

	PropertyID      string  `gorm:"type:uuid;not null;index" json:"property_id"`
	UnitNumber      string  `gorm:"not null" json:"unit_number"`
	RentAmount      float64 `json:"rent_amount"`
	Occupied        bool    `gorm:"default:false" json:"occupied"`
	CurrentTenantID *string `gorm:"type:uuid;index" json:"current_tenant_id,omitempty"`

	Property *Property `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
}
