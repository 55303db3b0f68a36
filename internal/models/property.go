package models

// Property is a managed estate, apartment block, or compound.
type Property struct {
	BaseModel

	Name      string  `gorm:"not null;index" json:"name"`
	Address   string  `json:"address"`
	ManagerID *string `gorm:"type:uuid;index" json:"manager_id,omitempty"`

	Units []Unit `gorm:"foreignKey:PropertyID" json:"units,omitempty"`
}
