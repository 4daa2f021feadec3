package model

// Capability identifies a federated operation class. The set is closed:
// anything outside it fails capability checks rather than defaulting open.
type Capability string

const (
	CapabilityProfiles     Capability = "profiles"
	CapabilityMessaging    Capability = "messaging"
	CapabilityTransactions Capability = "transactions"
	CapabilityListings     Capability = "listings"
	CapabilityEvents       Capability = "events"
	CapabilityGroups       Capability = "groups"
)

// Capabilities lists every known capability
func Capabilities() []Capability {
	return []Capability{
		CapabilityProfiles,
		CapabilityMessaging,
		CapabilityTransactions,
		CapabilityListings,
		CapabilityEvents,
		CapabilityGroups,
	}
}

// ParseCapability maps a string to a known capability
func ParseCapability(s string) (Capability, bool) {
	switch Capability(s) {
	case CapabilityProfiles, CapabilityMessaging, CapabilityTransactions,
		CapabilityListings, CapabilityEvents, CapabilityGroups:
		return Capability(s), true
	}
	return "", false
}
