package model

import "time"

// SystemControls is the singleton row of system-wide federation switches.
// Everything defaults to OFF: federation must be explicitly enabled.
type SystemControls struct {
	ID uint `gorm:"primaryKey" json:"id"`

	FederationEnabled bool `json:"federation_enabled"`
	WhitelistMode     bool `json:"whitelist_mode"`

	EmergencyLockdown       bool   `json:"emergency_lockdown"`
	EmergencyLockdownReason string `gorm:"size:500" json:"emergency_lockdown_reason,omitempty"`
	EmergencyLockdownBy     *uint  `json:"emergency_lockdown_by,omitempty"`

	MaxFederationLevel int `gorm:"default:1" json:"max_federation_level"`

	ProfilesEnabled     bool `json:"profiles_enabled"`
	MessagingEnabled    bool `json:"messaging_enabled"`
	TransactionsEnabled bool `json:"transactions_enabled"`
	ListingsEnabled     bool `json:"listings_enabled"`
	EventsEnabled       bool `json:"events_enabled"`
	GroupsEnabled       bool `json:"groups_enabled"`

	UpdatedBy *uint     `json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CapabilityEnabled reports the system-level switch for a capability
func (s *SystemControls) CapabilityEnabled(cap Capability) bool {
	switch cap {
	case CapabilityProfiles:
		return s.ProfilesEnabled
	case CapabilityMessaging:
		return s.MessagingEnabled
	case CapabilityTransactions:
		return s.TransactionsEnabled
	case CapabilityListings:
		return s.ListingsEnabled
	case CapabilityEvents:
		return s.EventsEnabled
	case CapabilityGroups:
		return s.GroupsEnabled
	}
	return false
}

// TenantFeature is a per-tenant feature toggle row
type TenantFeature struct {
	TenantID  uint   `gorm:"primaryKey" json:"tenant_id"`
	Key       string `gorm:"primaryKey;size:64" json:"key"`
	Enabled   bool   `json:"enabled"`
	UpdatedBy *uint  `json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tenant feature keys
const (
	TenantFederationEnabled = "federation_enabled"
	TenantAppearInDirectory = "appear_in_directory"
)

// TenantCapabilityKey names the tenant toggle for a capability
func TenantCapabilityKey(cap Capability) string {
	return string(cap) + "_enabled"
}

// WhitelistEntry marks a tenant as approved for federation while whitelist
// mode is active
type WhitelistEntry struct {
	TenantID   uint      `gorm:"primaryKey" json:"tenant_id"`
	ApprovedBy uint      `json:"approved_by"`
	Notes      string    `gorm:"size:500" json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
