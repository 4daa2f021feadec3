package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/partnerclient"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/pkg/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSearchStore struct {
	members  []model.Member
	listings []model.Listing

	lastMemberFilters  model.MemberSearchFilters
	lastListingFilters model.ListingSearchFilters
}

func (f *fakeSearchStore) ByID(userID, tenantID uint) (*model.Member, error) {
	for i := range f.members {
		if f.members[i].ID == userID && f.members[i].TenantID == tenantID {
			m := f.members[i]
			return &m, nil
		}
	}
	return nil, nil
}

func (f *fakeSearchStore) Search(filters model.MemberSearchFilters) ([]model.Member, error) {
	f.lastMemberFilters = filters
	var out []model.Member
	for _, m := range f.members {
		for _, t := range filters.TenantIDs {
			if m.TenantID == t {
				out = append(out, m)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeSearchStore) SearchListings(filters model.ListingSearchFilters) ([]model.Listing, error) {
	f.lastListingFilters = filters
	var out []model.Listing
	for _, l := range f.listings {
		for _, t := range filters.TenantIDs {
			if l.TenantID == t {
				out = append(out, l)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeSearchStore) ListingByID(id uint) (*model.Listing, error) {
	for i := range f.listings {
		if f.listings[i].ID == id {
			l := f.listings[i]
			return &l, nil
		}
	}
	return nil, nil
}

type fakeSearcher struct {
	memberResult  partnerclient.Result
	listingResult partnerclient.Result
	calls         int
}

func (f *fakeSearcher) SearchMembers(ctx context.Context, partner *model.ExternalPartner, filters model.MemberSearchFilters) partnerclient.Result {
	f.calls++
	return f.memberResult
}

func (f *fakeSearcher) SearchListings(ctx context.Context, partner *model.ExternalPartner, filters model.ListingSearchFilters) partnerclient.Result {
	f.calls++
	return f.listingResult
}

type searchFixture struct {
	env      *testEnv
	store    *fakeSearchStore
	remote   *fakeSearcher
	partners *fakePartnerStore
	svc      *SearchService
}

func newSearchFixture(t *testing.T) *searchFixture {
	t.Helper()
	env := newTestEnv(1, 2)
	env.activePartnership(1, 2, model.LevelSocial)
	env.optedInUser(10, 1)
	env.optedInUser(20, 2)

	store := &fakeSearchStore{
		members: []model.Member{
			{ID: 10, TenantID: 1, Name: "Alice", Skills: "gardening"},
			{ID: 20, TenantID: 2, Name: "Bob"},
			{ID: 30, TenantID: 3, Name: "Carol"},
		},
		listings: []model.Listing{
			{ID: 1, TenantID: 1, UserID: 10, Type: "offer", Title: "Garden help"},
			{ID: 2, TenantID: 2, UserID: 20, Type: "request", Title: "Bike repair"},
		},
	}
	remote := &fakeSearcher{
		memberResult:  partnerclient.Result{Success: true, Data: json.RawMessage(`{"members":[]}`)},
		listingResult: partnerclient.Result{Success: true, Data: json.RawMessage(`{"listings":[]}`)},
	}

	partnerStore := &fakePartnerStore{rows: map[uint]*model.ExternalPartner{
		7: {ID: 7, TenantID: 1, Name: "Remote Timebank", PlatformID: "ptn_remote", Status: model.PartnerActive},
	}}
	box, err := secrets.NewBox("6368616e676520746869732070617373776f726420746f206120736563726574")
	require.NoError(t, err)
	partnerAdmin := NewPartnerAdminService(partnerStore, nil, box, env.audit, zap.NewNop())

	svc := NewSearchService(store, env.users, env.partnerships, partnerAdmin, remote, zap.NewNop())
	return &searchFixture{env: env, store: store, remote: remote, partners: partnerStore, svc: svc}
}

func TestSearchMembersScopesToPartneredTenants(t *testing.T) {
	fx := newSearchFixture(t)

	res, err := fx.svc.SearchMembers(context.Background(), 1, model.MemberSearchFilters{})
	require.NoError(t, err)

	// tenant 3 has no partnership and must not appear
	assert.Equal(t, []uint{1, 2}, fx.store.lastMemberFilters.TenantIDs)
	require.Len(t, res.Members, 2)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 25, fx.store.lastMemberFilters.Limit)
	assert.Equal(t, fx.store.lastMemberFilters, res.FiltersApplied)
	assert.Len(t, res.Remote, 1)
	assert.Empty(t, res.Errors)
}

func TestSearchMembersWithoutPartnersSkipsStorage(t *testing.T) {
	fx := newSearchFixture(t)

	// tenant 3 has no partnerships granting profile access
	res, err := fx.svc.SearchMembers(context.Background(), 3, model.MemberSearchFilters{Query: "alice"})
	require.NoError(t, err)

	assert.Empty(t, res.Members)
	assert.Zero(t, res.Total)
	assert.False(t, res.HasMore)
	// the local index was never queried
	assert.Nil(t, fx.store.lastMemberFilters.TenantIDs)
}

func TestSearchMembersProjectsThroughSettings(t *testing.T) {
	fx := newSearchFixture(t)

	res, err := fx.svc.SearchMembers(context.Background(), 1, model.MemberSearchFilters{})
	require.NoError(t, err)

	for _, v := range res.Members {
		if v.ID == 10 {
			// Alice never enabled skill sharing
			assert.Empty(t, v.Skills)
		}
	}
}

func TestSearchMembersSurvivesPartnerFailure(t *testing.T) {
	fx := newSearchFixture(t)
	fx.remote.memberResult = partnerclient.Result{Success: false, Error: "connection refused"}

	res, err := fx.svc.SearchMembers(context.Background(), 1, model.MemberSearchFilters{})
	require.NoError(t, err)

	// local results survive a dead partner
	assert.Len(t, res.Members, 2)
	assert.Empty(t, res.Remote)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Remote Timebank")
	assert.Contains(t, res.Errors[0], "connection refused")
}

func TestSearchMembersSkipsUnusablePartners(t *testing.T) {
	fx := newSearchFixture(t)
	fx.partners.rows[7].Status = model.PartnerDisabled

	res, err := fx.svc.SearchMembers(context.Background(), 1, model.MemberSearchFilters{})
	require.NoError(t, err)
	assert.Zero(t, fx.remote.calls)
	assert.Empty(t, res.Remote)
	assert.Empty(t, res.Errors)
}

func TestSearchListings(t *testing.T) {
	fx := newSearchFixture(t)

	res, err := fx.svc.SearchListings(context.Background(), 1, model.ListingSearchFilters{Type: "offer"})
	require.NoError(t, err)

	assert.Equal(t, []uint{1, 2}, fx.store.lastListingFilters.TenantIDs)
	assert.Len(t, res.Listings, 2)
	assert.Len(t, res.Remote, 1)
}

func TestLocalMembersNeverFanOut(t *testing.T) {
	fx := newSearchFixture(t)

	views, err := fx.svc.LocalMembers(1, model.MemberSearchFilters{Limit: 500})
	require.NoError(t, err)

	assert.Equal(t, []uint{1}, fx.store.lastMemberFilters.TenantIDs)
	assert.Equal(t, 25, fx.store.lastMemberFilters.Limit)
	assert.Len(t, views, 1)
	assert.Zero(t, fx.remote.calls)
}

func TestLocalListings(t *testing.T) {
	fx := newSearchFixture(t)

	listings, err := fx.svc.LocalListings(2, model.ListingSearchFilters{})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, uint(2), listings[0].ID)
	assert.Zero(t, fx.remote.calls)
}

func TestGetProfileHidesNonOptedInMembers(t *testing.T) {
	fx := newSearchFixture(t)
	fx.store.members = append(fx.store.members, model.Member{ID: 11, TenantID: 1, Name: "Dave"})

	view, err := fx.svc.GetProfile(10, 1)
	require.NoError(t, err)
	assert.Equal(t, "Alice", view.Name)

	// Dave never opted in
	_, err = fx.svc.GetProfile(11, 1)
	assert.ErrorIs(t, err, ErrMemberNotFound)

	_, err = fx.svc.GetProfile(999, 1)
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestGetListing(t *testing.T) {
	fx := newSearchFixture(t)

	l, err := fx.svc.GetListing(2)
	require.NoError(t, err)
	assert.Equal(t, "Bike repair", l.Title)

	_, err = fx.svc.GetListing(999)
	assert.ErrorIs(t, err, ErrListingNotFound)
}
