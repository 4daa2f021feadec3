package model

import "time"

// Member is the slice of a tenant user that federation exposes: identity,
// profile fields shown to partners, and the time-credit balance.
type Member struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	TenantID uint   `gorm:"index" json:"tenant_id"`
	Name     string `gorm:"size:255" json:"name"`
	Email    string `gorm:"size:255" json:"-"`
	Bio      string `gorm:"size:2000" json:"bio,omitempty"`
	Skills   string `gorm:"size:2000" json:"skills,omitempty"`
	Location string `gorm:"size:255" json:"location,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	AvatarURL string   `gorm:"size:500" json:"avatar_url,omitempty"`
	Status    string   `gorm:"size:16;default:active;index" json:"status"`

	// Balance is the member's time-credit balance in hours
	Balance float64 `json:"balance"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FederatedMemberView is the partner-facing projection of a member, shaped
// by the member's visibility settings.
type FederatedMemberView struct {
	ID           uint   `json:"id"`
	TenantID     uint   `json:"tenant_id"`
	Name         string `json:"name"`
	Bio          string `json:"bio,omitempty"`
	Skills       string `json:"skills,omitempty"`
	Location     string `json:"location,omitempty"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	ServiceReach string `json:"service_reach"`
	TravelRadiusKm *int `json:"travel_radius_km,omitempty"`
	MessagingEnabled    bool `json:"messaging_enabled"`
	TransactionsEnabled bool `json:"transactions_enabled"`
}

// FederatedView projects the member through their settings, dropping fields
// the member has not opted to share
func (m *Member) FederatedView(s *UserFederationSettings) FederatedMemberView {
	view := FederatedMemberView{
		ID:                  m.ID,
		TenantID:            m.TenantID,
		Name:                m.Name,
		Bio:                 m.Bio,
		AvatarURL:           m.AvatarURL,
		ServiceReach:        NormalizeReach(s.ServiceReach),
		TravelRadiusKm:      s.TravelRadiusKm,
		MessagingEnabled:    s.MessagingEnabledFederated,
		TransactionsEnabled: s.TransactionsEnabledFederated,
	}
	if s.ShowSkillsFederated {
		view.Skills = m.Skills
	}
	if s.ShowLocationFederated {
		view.Location = m.Location
	}
	return view
}
