package model

import (
	"time"
)

// Partnership statuses
const (
	PartnershipPending    = "pending"
	PartnershipActive     = "active"
	PartnershipSuspended  = "suspended"
	PartnershipTerminated = "terminated"
)

// Federation levels
const (
	LevelDiscovery  = 1 // Can see the partner exists
	LevelSocial     = 2 // Can view profiles, message
	LevelEconomic   = 3 // Can exchange time credits
	LevelIntegrated = 4 // Full integration including groups
)

// PermissionSet holds the per-capability flags of a partnership
type PermissionSet struct {
	Profiles     bool `json:"profiles"`
	Messaging    bool `json:"messaging"`
	Transactions bool `json:"transactions"`
	Listings     bool `json:"listings"`
	Events       bool `json:"events"`
	Groups       bool `json:"groups"`
}

// Has reports whether the set grants the capability
func (p PermissionSet) Has(cap Capability) bool {
	switch cap {
	case CapabilityProfiles:
		return p.Profiles
	case CapabilityMessaging:
		return p.Messaging
	case CapabilityTransactions:
		return p.Transactions
	case CapabilityListings:
		return p.Listings
	case CapabilityEvents:
		return p.Events
	case CapabilityGroups:
		return p.Groups
	}
	return false
}

// PermissionPatch is a partial permission update; nil fields are left alone
type PermissionPatch struct {
	Profiles     *bool `json:"profiles,omitempty"`
	Messaging    *bool `json:"messaging,omitempty"`
	Transactions *bool `json:"transactions,omitempty"`
	Listings     *bool `json:"listings,omitempty"`
	Events       *bool `json:"events,omitempty"`
	Groups       *bool `json:"groups,omitempty"`
}

// Apply merges the patch over a base set
func (p PermissionPatch) Apply(base PermissionSet) PermissionSet {
	if p.Profiles != nil {
		base.Profiles = *p.Profiles
	}
	if p.Messaging != nil {
		base.Messaging = *p.Messaging
	}
	if p.Transactions != nil {
		base.Transactions = *p.Transactions
	}
	if p.Listings != nil {
		base.Listings = *p.Listings
	}
	if p.Events != nil {
		base.Events = *p.Events
	}
	if p.Groups != nil {
		base.Groups = *p.Groups
	}
	return base
}

// Partnership is the trust relationship between two tenants. The pair is
// stored in canonical order (TenantA < TenantB) so lookups are symmetric.
type Partnership struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	TenantA uint   `gorm:"uniqueIndex:idx_tenant_pair;index" json:"tenant_a"`
	TenantB uint   `gorm:"uniqueIndex:idx_tenant_pair;index" json:"tenant_b"`
	Status  string `gorm:"size:16;index;default:pending" json:"status"`
	Level   int    `gorm:"default:1" json:"level"`

	ProfilesEnabled     bool `json:"profiles_enabled"`
	MessagingEnabled    bool `json:"messaging_enabled"`
	TransactionsEnabled bool `json:"transactions_enabled"`
	ListingsEnabled     bool `json:"listings_enabled"`
	EventsEnabled       bool `json:"events_enabled"`
	GroupsEnabled       bool `json:"groups_enabled"`

	RequestedByTenant uint    `json:"requested_by_tenant"`
	RequestedBy       uint    `json:"requested_by"`
	Notes             string  `gorm:"size:500" json:"notes,omitempty"`
	ApprovedBy        *uint   `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`

	// Counter-proposal state, meaningful only while pending
	ProposedLevel       *int       `json:"proposed_level,omitempty"`
	CounterProposedBy   *uint      `json:"counter_proposed_by,omitempty"`
	CounterProposedAt   *time.Time `json:"counter_proposed_at,omitempty"`
	CounterMessage      string     `gorm:"size:500" json:"counter_message,omitempty"`
	CounterPermissions  *PermissionPatch `gorm:"serializer:json" json:"counter_permissions,omitempty"`

	TerminatedBy      *uint      `json:"terminated_by,omitempty"`
	TerminatedAt      *time.Time `json:"terminated_at,omitempty"`
	TerminationReason string     `gorm:"size:500" json:"termination_reason,omitempty"`

	StatusChangedAt time.Time `json:"status_changed_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ClearCounterProposal wipes counter-proposal state after a pending request
// is resolved
func (p *Partnership) ClearCounterProposal() {
	p.ProposedLevel = nil
	p.CounterProposedBy = nil
	p.CounterProposedAt = nil
	p.CounterMessage = ""
	p.CounterPermissions = nil
}

// CanonicalPair orders two tenant ids so both call directions address the
// same partnership row
func CanonicalPair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}

// Involves reports whether the partnership covers the tenant
func (p *Partnership) Involves(tenantID uint) bool {
	return p.TenantA == tenantID || p.TenantB == tenantID
}

// PartnerOf returns the counterpart tenant id (zero when not involved)
func (p *Partnership) PartnerOf(tenantID uint) uint {
	switch tenantID {
	case p.TenantA:
		return p.TenantB
	case p.TenantB:
		return p.TenantA
	}
	return 0
}

// Permissions returns the partnership's flags as a set
func (p *Partnership) Permissions() PermissionSet {
	return PermissionSet{
		Profiles:     p.ProfilesEnabled,
		Messaging:    p.MessagingEnabled,
		Transactions: p.TransactionsEnabled,
		Listings:     p.ListingsEnabled,
		Events:       p.EventsEnabled,
		Groups:       p.GroupsEnabled,
	}
}

// SetPermissions overwrites the partnership's flags from a set
func (p *Partnership) SetPermissions(perms PermissionSet) {
	p.ProfilesEnabled = perms.Profiles
	p.MessagingEnabled = perms.Messaging
	p.TransactionsEnabled = perms.Transactions
	p.ListingsEnabled = perms.Listings
	p.EventsEnabled = perms.Events
	p.GroupsEnabled = perms.Groups
}

// DefaultPermissions returns the permission set granted by a federation
// level. Unknown levels get the Discovery set.
func DefaultPermissions(level int) PermissionSet {
	switch level {
	case LevelIntegrated:
		return PermissionSet{Profiles: true, Messaging: true, Transactions: true, Listings: true, Events: true, Groups: true}
	case LevelEconomic:
		return PermissionSet{Profiles: true, Messaging: true, Transactions: true, Listings: true, Events: true}
	case LevelSocial:
		return PermissionSet{Profiles: true, Messaging: true, Listings: true, Events: true}
	default:
		return PermissionSet{Profiles: true}
	}
}

// LevelName returns the display name for a federation level
func LevelName(level int) string {
	switch level {
	case LevelDiscovery:
		return "Discovery"
	case LevelSocial:
		return "Social"
	case LevelEconomic:
		return "Economic"
	case LevelIntegrated:
		return "Integrated"
	}
	return "Unknown"
}

// LevelDescription returns the long description for a federation level
func LevelDescription(level int) string {
	switch level {
	case LevelDiscovery:
		return "Basic visibility - can see tenant exists and view basic profiles"
	case LevelSocial:
		return "Social features - can message and view listings/events"
	case LevelEconomic:
		return "Full trading - can exchange time credits"
	case LevelIntegrated:
		return "Full integration - all features including groups"
	}
	return ""
}

// PartnershipStats aggregates partnership counts for dashboards
type PartnershipStats struct {
	Total      int64         `json:"total"`
	Active     int64         `json:"active"`
	Pending    int64         `json:"pending"`
	Suspended  int64         `json:"suspended"`
	Terminated int64         `json:"terminated"`
	Recent     []Partnership `json:"recent"`
}
