package service

import (
	"testing"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestCreatesPendingPartnership(t *testing.T) {
	env := newTestEnv(1, 2)

	p, err := env.partnerships.Request(2, 1, model.LevelSocial, 7, "hello")
	require.NoError(t, err)

	assert.Equal(t, model.PartnershipPending, p.Status)
	assert.Equal(t, uint(1), p.TenantA)
	assert.Equal(t, uint(2), p.TenantB)
	assert.Equal(t, uint(2), p.RequestedByTenant)
	assert.Equal(t, uint(7), p.RequestedBy)
	assert.Equal(t, model.LevelSocial, p.Level)
	assert.True(t, p.Permissions().Has(model.CapabilityMessaging))
	assert.False(t, p.Permissions().Has(model.CapabilityTransactions))
	assert.Contains(t, env.auditStore.actions(), "partnership_requested")
}

func TestRequestRejectsBadInput(t *testing.T) {
	env := newTestEnv(1, 2)

	_, err := env.partnerships.Request(1, 1, model.LevelSocial, 7, "")
	assert.ErrorIs(t, err, ErrSelfPartnership)

	_, err = env.partnerships.Request(1, 2, 0, 7, "")
	assert.ErrorIs(t, err, ErrInvalidLevel)

	_, err = env.partnerships.Request(1, 2, 5, 7, "")
	assert.ErrorIs(t, err, ErrInvalidLevel)

	// tenant 3 never opted into federation
	_, err = env.partnerships.Request(1, 3, model.LevelSocial, 7, "")
	assert.ErrorIs(t, err, ErrFederationDisabled)
}

func TestRequestClampsLevelToSystemMax(t *testing.T) {
	env := newTestEnv(1, 2)
	env.featureStore.sc.MaxFederationLevel = model.LevelSocial

	p, err := env.partnerships.Request(1, 2, model.LevelIntegrated, 7, "")
	require.NoError(t, err)
	assert.Equal(t, model.LevelSocial, p.Level)
}

func TestRequestDuplicateRejected(t *testing.T) {
	env := newTestEnv(1, 2)

	_, err := env.partnerships.Request(1, 2, model.LevelSocial, 7, "")
	require.NoError(t, err)

	// same pair from either direction
	_, err = env.partnerships.Request(2, 1, model.LevelSocial, 9, "")
	assert.ErrorIs(t, err, ErrPartnershipExists)
}

func TestRequestReusesTerminatedRow(t *testing.T) {
	env := newTestEnv(1, 2)

	p, err := env.partnerships.Request(1, 2, model.LevelEconomic, 7, "")
	require.NoError(t, err)
	_, err = env.partnerships.Approve(p.ID, 2, 8, nil)
	require.NoError(t, err)
	_, err = env.partnerships.Terminate(p.ID, 2, 8, "winding down")
	require.NoError(t, err)

	again, err := env.partnerships.Request(2, 1, model.LevelSocial, 9, "second try")
	require.NoError(t, err)

	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, model.PartnershipPending, again.Status)
	assert.Equal(t, uint(2), again.RequestedByTenant)
	assert.Equal(t, model.LevelSocial, again.Level)
	assert.Nil(t, again.ApprovedBy)
	assert.Nil(t, again.TerminatedAt)
	assert.Empty(t, again.TerminationReason)
}

func TestApprove(t *testing.T) {
	env := newTestEnv(1, 2)
	p, _ := env.partnerships.Request(1, 2, model.LevelSocial, 7, "")

	// the requester cannot approve their own request
	_, err := env.partnerships.Approve(p.ID, 1, 7, nil)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	approved, err := env.partnerships.Approve(p.ID, 2, 8, nil)
	require.NoError(t, err)
	assert.Equal(t, model.PartnershipActive, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, uint(8), *approved.ApprovedBy)
	assert.NotNil(t, approved.ApprovedAt)

	// second approve hits a non-pending row
	_, err = env.partnerships.Approve(p.ID, 2, 8, nil)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestApproveWithPermissionPatch(t *testing.T) {
	env := newTestEnv(1, 2)
	p, _ := env.partnerships.Request(1, 2, model.LevelSocial, 7, "")

	off := false
	approved, err := env.partnerships.Approve(p.ID, 2, 8, &model.PermissionPatch{Messaging: &off})
	require.NoError(t, err)
	assert.Equal(t, model.PartnershipActive, approved.Status)
	assert.True(t, approved.ProfilesEnabled)
	assert.False(t, approved.MessagingEnabled)
}

func TestApproveRequiresInvolvement(t *testing.T) {
	env := newTestEnv(1, 2, 3)
	p, _ := env.partnerships.Request(1, 2, model.LevelSocial, 7, "")

	_, err := env.partnerships.Approve(p.ID, 3, 9, nil)
	assert.ErrorIs(t, err, ErrNotInvolved)

	_, err = env.partnerships.Approve(999, 2, 9, nil)
	assert.ErrorIs(t, err, ErrPartnershipNotFound)
}

func TestDeclineTerminates(t *testing.T) {
	env := newTestEnv(1, 2)
	p, _ := env.partnerships.Request(1, 2, model.LevelSocial, 7, "")

	_, err := env.partnerships.Decline(p.ID, 1, 7, "no thanks")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	declined, err := env.partnerships.Decline(p.ID, 2, 8, "no thanks")
	require.NoError(t, err)
	assert.Equal(t, model.PartnershipTerminated, declined.Status)
	assert.Equal(t, "no thanks", declined.TerminationReason)

	// a declined pair can be requested again
	_, err = env.partnerships.Request(1, 2, model.LevelSocial, 7, "")
	assert.NoError(t, err)
}

func TestCounterProposeFlow(t *testing.T) {
	env := newTestEnv(1, 2)
	p, _ := env.partnerships.Request(1, 2, model.LevelIntegrated, 7, "")

	off := false
	countered, err := env.partnerships.CounterPropose(p.ID, 2, 8, model.LevelSocial, "start smaller", &model.PermissionPatch{Profiles: &off})
	require.NoError(t, err)

	// counter keeps the request pending with the original terms intact
	assert.Equal(t, model.PartnershipPending, countered.Status)
	assert.Equal(t, model.LevelIntegrated, countered.Level)
	require.NotNil(t, countered.ProposedLevel)
	assert.Equal(t, model.LevelSocial, *countered.ProposedLevel)
	assert.NotNil(t, countered.CounterProposedAt)

	counters, err := env.partnerships.CounterProposals(1)
	require.NoError(t, err)
	require.Len(t, counters, 1)

	// only the original requester may accept
	_, err = env.partnerships.AcceptCounter(p.ID, 2, 8)
	assert.ErrorIs(t, err, ErrInvalidState)

	accepted, err := env.partnerships.AcceptCounter(p.ID, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, model.PartnershipActive, accepted.Status)
	assert.Equal(t, model.LevelSocial, accepted.Level)
	perms := accepted.Permissions()
	assert.True(t, perms.Has(model.CapabilityMessaging))
	assert.False(t, perms.Has(model.CapabilityProfiles))
	assert.Nil(t, accepted.CounterProposedAt)
	assert.Nil(t, accepted.ProposedLevel)
}

func TestCounterProposeRequiresReceivingSide(t *testing.T) {
	env := newTestEnv(1, 2)
	p, _ := env.partnerships.Request(1, 2, model.LevelSocial, 7, "")

	_, err := env.partnerships.CounterPropose(p.ID, 1, 7, model.LevelDiscovery, "", nil)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = env.partnerships.CounterPropose(p.ID, 2, 8, 0, "", nil)
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestAcceptCounterWithoutCounterIsInvalid(t *testing.T) {
	env := newTestEnv(1, 2)
	p, _ := env.partnerships.Request(1, 2, model.LevelSocial, 7, "")

	_, err := env.partnerships.AcceptCounter(p.ID, 1, 7)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRejectCounterTerminates(t *testing.T) {
	env := newTestEnv(1, 2)
	p, _ := env.partnerships.Request(1, 2, model.LevelIntegrated, 7, "")
	_, err := env.partnerships.CounterPropose(p.ID, 2, 8, model.LevelSocial, "", nil)
	require.NoError(t, err)

	rejected, err := env.partnerships.RejectCounter(p.ID, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, model.PartnershipTerminated, rejected.Status)
	assert.Equal(t, "counter-proposal rejected", rejected.TerminationReason)
}

func TestSuspendResumeTerminate(t *testing.T) {
	env := newTestEnv(1, 2)
	p, _ := env.partnerships.Request(1, 2, model.LevelSocial, 7, "")
	_, err := env.partnerships.Approve(p.ID, 2, 8, nil)
	require.NoError(t, err)

	suspended, err := env.partnerships.Suspend(p.ID, 1, 7, "audit in progress")
	require.NoError(t, err)
	assert.Equal(t, model.PartnershipSuspended, suspended.Status)

	// suspending twice is invalid
	_, err = env.partnerships.Suspend(p.ID, 1, 7, "")
	assert.ErrorIs(t, err, ErrInvalidState)

	resumed, err := env.partnerships.Resume(p.ID, 2, 8)
	require.NoError(t, err)
	assert.Equal(t, model.PartnershipActive, resumed.Status)

	terminated, err := env.partnerships.Terminate(p.ID, 1, 7, "done")
	require.NoError(t, err)
	assert.Equal(t, model.PartnershipTerminated, terminated.Status)

	_, err = env.partnerships.Resume(p.ID, 2, 8)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTerminateFromSuspended(t *testing.T) {
	env := newTestEnv(1, 2)
	p, _ := env.partnerships.Request(1, 2, model.LevelSocial, 7, "")
	_, _ = env.partnerships.Approve(p.ID, 2, 8, nil)
	_, err := env.partnerships.Suspend(p.ID, 1, 7, "pause")
	require.NoError(t, err)

	terminated, err := env.partnerships.Terminate(p.ID, 2, 8, "never resumed")
	require.NoError(t, err)
	assert.Equal(t, model.PartnershipTerminated, terminated.Status)
}

func TestUpdatePermissions(t *testing.T) {
	env := newTestEnv(1, 2)
	p, _ := env.partnerships.Request(1, 2, model.LevelSocial, 7, "")

	on := true
	_, err := env.partnerships.UpdatePermissions(p.ID, 1, 7, model.PermissionPatch{Transactions: &on})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = env.partnerships.Approve(p.ID, 2, 8, nil)
	require.NoError(t, err)

	updated, err := env.partnerships.UpdatePermissions(p.ID, 1, 7, model.PermissionPatch{Transactions: &on})
	require.NoError(t, err)
	assert.True(t, updated.Permissions().Has(model.CapabilityTransactions))
	assert.True(t, updated.Permissions().Has(model.CapabilityMessaging))
}

func TestGetByPairHidesTerminated(t *testing.T) {
	env := newTestEnv(1, 2)
	p, _ := env.partnerships.Request(1, 2, model.LevelSocial, 7, "")
	_, _ = env.partnerships.Approve(p.ID, 2, 8, nil)

	found, err := env.partnerships.GetByPair(2, 1)
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)

	_, err = env.partnerships.Terminate(p.ID, 1, 7, "done")
	require.NoError(t, err)

	_, err = env.partnerships.GetByPair(1, 2)
	assert.ErrorIs(t, err, ErrPartnershipNotFound)
}

func TestPendingLists(t *testing.T) {
	env := newTestEnv(1, 2, 3)
	p12, _ := env.partnerships.Request(1, 2, model.LevelSocial, 7, "")
	_, err := env.partnerships.Request(3, 1, model.LevelSocial, 9, "")
	require.NoError(t, err)

	incoming, err := env.partnerships.PendingIncoming(2)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, p12.ID, incoming[0].ID)

	outgoing, err := env.partnerships.Outgoing(1)
	require.NoError(t, err)
	assert.Len(t, outgoing, 1)

	// a countered request leaves the incoming queue
	_, err = env.partnerships.CounterPropose(p12.ID, 2, 8, model.LevelDiscovery, "", nil)
	require.NoError(t, err)
	incoming, err = env.partnerships.PendingIncoming(2)
	require.NoError(t, err)
	assert.Empty(t, incoming)
}

func TestActivePartnersFilterByCapability(t *testing.T) {
	env := newTestEnv(1, 2, 3)
	p12, _ := env.partnerships.Request(1, 2, model.LevelEconomic, 7, "")
	_, _ = env.partnerships.Approve(p12.ID, 2, 8, nil)
	p13, _ := env.partnerships.Request(1, 3, model.LevelDiscovery, 7, "")
	_, _ = env.partnerships.Approve(p13.ID, 3, 9, nil)

	partners, err := env.partnerships.ActivePartners(1, model.CapabilityTransactions)
	require.NoError(t, err)
	assert.Equal(t, []uint{2}, partners)
}
