package service

import (
	"testing"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsDefaultsWhenNoRow(t *testing.T) {
	env := newTestEnv(1)

	s, err := env.users.Settings(42, 1)
	require.NoError(t, err)
	assert.False(t, s.FederationOptin)
	assert.False(t, s.ProfileVisibleFederated)
	assert.Equal(t, model.ReachLocalOnly, s.ServiceReach)
	assert.Nil(t, s.OptedInAt)
}

func TestUpdateOptInStampsTimestamp(t *testing.T) {
	env := newTestEnv(1)

	on := true
	s, err := env.users.Update(42, 1, SettingsUpdate{
		FederationOptin:           &on,
		MessagingEnabledFederated: &on,
	})
	require.NoError(t, err)
	assert.True(t, s.FederationOptin)
	assert.True(t, s.MessagingEnabledFederated)
	require.NotNil(t, s.OptedInAt)
	first := *s.OptedInAt

	// the stamp survives later unrelated updates
	reach := model.ReachTravelOK
	s, err = env.users.Update(42, 1, SettingsUpdate{ServiceReach: &reach})
	require.NoError(t, err)
	require.NotNil(t, s.OptedInAt)
	assert.Equal(t, first, *s.OptedInAt)
	assert.Equal(t, model.ReachTravelOK, s.ServiceReach)

	assert.Contains(t, env.auditStore.actions(), "user_settings_updated")
}

func TestUpdateOptOutResetsEverything(t *testing.T) {
	env := newTestEnv(1)
	env.optedInUser(42, 1)

	off := false
	s, err := env.users.Update(42, 1, SettingsUpdate{FederationOptin: &off})
	require.NoError(t, err)

	assert.False(t, s.FederationOptin)
	assert.False(t, s.ProfileVisibleFederated)
	assert.False(t, s.MessagingEnabledFederated)
	assert.False(t, s.TransactionsEnabledFederated)
	assert.False(t, s.AppearInFederatedSearch)
	assert.Nil(t, s.OptedInAt)
}

func TestUpdateNormalizesReach(t *testing.T) {
	env := newTestEnv(1)

	bogus := "teleport"
	s, err := env.users.Update(42, 1, SettingsUpdate{ServiceReach: &bogus})
	require.NoError(t, err)
	assert.Equal(t, model.ReachLocalOnly, s.ServiceReach)
}

func TestOptedInUsers(t *testing.T) {
	env := newTestEnv(1, 2)
	env.optedInUser(10, 1)
	env.optedInUser(11, 1)
	env.optedInUser(20, 2)

	users, err := env.users.OptedInUsers(1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{10, 11}, users)
}
