package model

import "time"

// Tenant is an independent timebank organization. Federation treats tenants
// as opaque: only identity and directory facts are consulted here.
type Tenant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255" json:"name"`
	Domain    string    `gorm:"size:255;uniqueIndex" json:"domain"`
	Status    string    `gorm:"size:16;default:active" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
