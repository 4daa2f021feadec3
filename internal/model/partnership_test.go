package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalPair(t *testing.T) {
	a, b := CanonicalPair(7, 3)
	assert.Equal(t, uint(3), a)
	assert.Equal(t, uint(7), b)

	a, b = CanonicalPair(3, 7)
	assert.Equal(t, uint(3), a)
	assert.Equal(t, uint(7), b)
}

func TestPartnershipInvolves(t *testing.T) {
	p := Partnership{TenantA: 1, TenantB: 2}

	assert.True(t, p.Involves(1))
	assert.True(t, p.Involves(2))
	assert.False(t, p.Involves(3))

	assert.Equal(t, uint(2), p.PartnerOf(1))
	assert.Equal(t, uint(1), p.PartnerOf(2))
	assert.Equal(t, uint(0), p.PartnerOf(3))
}

func TestDefaultPermissions(t *testing.T) {
	tests := []struct {
		level int
		want  PermissionSet
	}{
		{LevelDiscovery, PermissionSet{Profiles: true}},
		{LevelSocial, PermissionSet{Profiles: true, Messaging: true, Listings: true, Events: true}},
		{LevelEconomic, PermissionSet{Profiles: true, Messaging: true, Transactions: true, Listings: true, Events: true}},
		{LevelIntegrated, PermissionSet{Profiles: true, Messaging: true, Transactions: true, Listings: true, Events: true, Groups: true}},
		{0, PermissionSet{Profiles: true}},
		{99, PermissionSet{Profiles: true}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultPermissions(tt.level), "level %d", tt.level)
	}
}

func TestPermissionSetHas(t *testing.T) {
	perms := PermissionSet{Messaging: true, Transactions: true}

	assert.True(t, perms.Has(CapabilityMessaging))
	assert.True(t, perms.Has(CapabilityTransactions))
	assert.False(t, perms.Has(CapabilityProfiles))
	assert.False(t, perms.Has(Capability("bogus")))
}

func TestPermissionPatchApply(t *testing.T) {
	on := true
	off := false
	base := DefaultPermissions(LevelEconomic)

	got := PermissionPatch{Transactions: &off, Groups: &on}.Apply(base)

	assert.False(t, got.Transactions)
	assert.True(t, got.Groups)
	// Untouched fields survive
	assert.True(t, got.Profiles)
	assert.True(t, got.Messaging)
	assert.True(t, got.Listings)
}

func TestClearCounterProposal(t *testing.T) {
	level := 3
	by := uint(9)
	at := time.Now()
	on := true
	p := Partnership{
		ProposedLevel:      &level,
		CounterProposedBy:  &by,
		CounterProposedAt:  &at,
		CounterMessage:     "let's trade",
		CounterPermissions: &PermissionPatch{Transactions: &on},
	}

	p.ClearCounterProposal()

	assert.Nil(t, p.ProposedLevel)
	assert.Nil(t, p.CounterProposedBy)
	assert.Nil(t, p.CounterProposedAt)
	assert.Empty(t, p.CounterMessage)
	assert.Nil(t, p.CounterPermissions)
}

func TestLevelNames(t *testing.T) {
	assert.Equal(t, "Discovery", LevelName(LevelDiscovery))
	assert.Equal(t, "Integrated", LevelName(LevelIntegrated))
	assert.Equal(t, "Unknown", LevelName(42))
	assert.NotEmpty(t, LevelDescription(LevelEconomic))
	assert.Empty(t, LevelDescription(42))
}
