package model

import "time"

// Listing is an offer or request published by a member. Federation only
// reads listings; CRUD lives outside this service.
type Listing struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	TenantID uint   `gorm:"index" json:"tenant_id"`
	UserID   uint   `gorm:"index" json:"user_id"`
	Type     string `gorm:"size:16;index" json:"type"` // offer or request
	Title    string `gorm:"size:255" json:"title"`
	Description string `gorm:"size:5000" json:"description"`
	Category    string `gorm:"size:64;index" json:"category,omitempty"`
	Status      string `gorm:"size:16;default:active;index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
