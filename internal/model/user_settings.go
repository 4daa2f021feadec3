package model

import "time"

// Service reach values
const (
	ReachLocalOnly = "local_only"
	ReachTravelOK  = "travel_ok"
	ReachRemoteOK  = "remote_ok"
)

// NormalizeReach maps unknown reach values to local_only
func NormalizeReach(reach string) string {
	switch reach {
	case ReachLocalOnly, ReachTravelOK, ReachRemoteOK:
		return reach
	}
	return ReachLocalOnly
}

// ReachSet expands a reach filter to the settings values it matches.
// A search for remote_ok also matches members willing to travel.
func ReachSet(reach string) []string {
	switch NormalizeReach(reach) {
	case ReachRemoteOK:
		return []string{ReachRemoteOK, ReachTravelOK}
	case ReachTravelOK:
		return []string{ReachTravelOK}
	}
	return []string{ReachLocalOnly}
}

// UserFederationSettings holds a user's federation opt-in flags. Absence of
// a row means fully opted out; use DefaultUserSettings for that case.
type UserFederationSettings struct {
	UserID   uint `gorm:"primaryKey" json:"user_id"`
	TenantID uint `gorm:"index" json:"tenant_id"`

	FederationOptin           bool `gorm:"index" json:"federation_optin"`
	ProfileVisibleFederated   bool `json:"profile_visible_federated"`
	MessagingEnabledFederated bool `json:"messaging_enabled_federated"`
	TransactionsEnabledFederated bool `json:"transactions_enabled_federated"`
	AppearInFederatedSearch   bool `gorm:"index" json:"appear_in_federated_search"`
	ShowSkillsFederated       bool `json:"show_skills_federated"`
	ShowLocationFederated     bool `json:"show_location_federated"`

	ServiceReach   string `gorm:"size:16;default:local_only" json:"service_reach"`
	TravelRadiusKm *int   `json:"travel_radius_km,omitempty"`

	OptedInAt *time.Time `json:"opted_in_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// DefaultUserSettings returns the conservative all-off settings used when a
// user has no stored row
func DefaultUserSettings(userID, tenantID uint) UserFederationSettings {
	return UserFederationSettings{
		UserID:       userID,
		TenantID:     tenantID,
		ServiceReach: ReachLocalOnly,
	}
}

// AllowsCapability reports whether the user's settings opt in to a
// user-scoped capability
func (s *UserFederationSettings) AllowsCapability(cap Capability) bool {
	if !s.FederationOptin {
		return false
	}
	switch cap {
	case CapabilityProfiles:
		return s.ProfileVisibleFederated
	case CapabilityMessaging:
		return s.MessagingEnabledFederated
	case CapabilityTransactions:
		return s.TransactionsEnabledFederated
	}
	return true
}
