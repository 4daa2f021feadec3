package service

import (
	"testing"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewaySameTenantAlwaysAllowed(t *testing.T) {
	env := newTestEnv()

	// no partnership, no opt-in, federation not even enabled for tenant 1
	env.featureStore.sc.FederationEnabled = false

	d, err := env.gateway.CanViewProfile(1, 1, 42)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Nil(t, d.Reason)
}

func TestGatewayDenyChain(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(env *testEnv)
		reason string
	}{
		{
			name: "federation disabled globally",
			setup: func(env *testEnv) {
				env.featureStore.sc.FederationEnabled = false
			},
			reason: "federation is not enabled for this operation",
		},
		{
			name: "emergency lockdown",
			setup: func(env *testEnv) {
				env.featureStore.sc.EmergencyLockdown = true
			},
			reason: "federation is not enabled for this operation",
		},
		{
			name: "capability switched off system-wide",
			setup: func(env *testEnv) {
				env.featureStore.sc.MessagingEnabled = false
			},
			reason: "federation is not enabled for this operation",
		},
		{
			name: "target tenant not opted in",
			setup: func(env *testEnv) {
				env.featureStore.features[2][model.TenantFederationEnabled] = false
			},
			reason: "federation is not enabled for this operation",
		},
		{
			name: "whitelist mode without entries",
			setup: func(env *testEnv) {
				env.featureStore.sc.WhitelistMode = true
			},
			reason: "federation is not enabled for this operation",
		},
		{
			name:   "no partnership",
			setup:  func(env *testEnv) {},
			reason: "no partnership between these communities",
		},
		{
			name: "partnership suspended",
			setup: func(env *testEnv) {
				p := env.activePartnership(1, 2, model.LevelIntegrated)
				p.Status = model.PartnershipSuspended
				_ = env.partnershipStore.Save(p)
			},
			reason: "partnership is suspended",
		},
		{
			name: "partnership still pending",
			setup: func(env *testEnv) {
				_, err := env.partnerships.Request(1, 2, model.LevelIntegrated, 7, "")
				require.NoError(t, err)
			},
			reason: "partnership is not active",
		},
		{
			name: "partnership lacks the capability",
			setup: func(env *testEnv) {
				// level 1 is discovery-only
				env.activePartnership(1, 2, model.LevelDiscovery)
			},
			reason: "partnership does not include this capability",
		},
		{
			name: "target user never opted in",
			setup: func(env *testEnv) {
				env.activePartnership(1, 2, model.LevelIntegrated)
			},
			reason: "user has not opted into this",
		},
		{
			name: "target user opted in but disabled messaging",
			setup: func(env *testEnv) {
				env.activePartnership(1, 2, model.LevelIntegrated)
				env.optedInUser(42, 2)
				s, _ := env.settingsStore.ByUser(42)
				s.MessagingEnabledFederated = false
				_ = env.settingsStore.Save(s)
			},
			reason: "user has not opted into this",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(1, 2)
			tt.setup(env)

			d, err := env.gateway.CanSendMessage(1, 2, 42)
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			require.NotNil(t, d.Reason)
			assert.Equal(t, tt.reason, *d.Reason)
		})
	}
}

func TestGatewayAllowsWhenEverythingLinesUp(t *testing.T) {
	env := newTestEnv(1, 2)
	env.activePartnership(1, 2, model.LevelIntegrated)
	env.optedInUser(42, 2)

	d, err := env.gateway.CanSendMessage(1, 2, 42)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestGatewayWhitelistModeBothListed(t *testing.T) {
	env := newTestEnv(1, 2)
	env.featureStore.sc.WhitelistMode = true
	env.featureStore.whitelist[1] = true
	env.featureStore.whitelist[2] = true
	env.activePartnership(1, 2, model.LevelIntegrated)
	env.optedInUser(42, 2)

	d, err := env.gateway.CanSendMessage(1, 2, 42)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestGatewayListingCheckSkipsUserPrivacy(t *testing.T) {
	env := newTestEnv(1, 2)
	env.activePartnership(1, 2, model.LevelIntegrated)

	// no user on tenant 2 has opted in; listings are tenant-scoped
	d, err := env.gateway.CanViewListing(1, 2)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestGatewayProfileRespectsVisibilityFlag(t *testing.T) {
	env := newTestEnv(1, 2)
	env.activePartnership(1, 2, model.LevelIntegrated)
	env.optedInUser(42, 2)
	s, _ := env.settingsStore.ByUser(42)
	s.ProfileVisibleFederated = false
	_ = env.settingsStore.Save(s)

	d, err := env.gateway.CanViewProfile(1, 2, 42)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	require.NotNil(t, d.Reason)
	assert.Equal(t, "user has not opted into this", *d.Reason)
}
