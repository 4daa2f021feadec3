package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/partnerclient"
	"go.uber.org/zap"
)

// searchStore is what the search service needs from local persistence
type searchStore interface {
	ByID(userID, tenantID uint) (*model.Member, error)
	Search(f model.MemberSearchFilters) ([]model.Member, error)
	SearchListings(f model.ListingSearchFilters) ([]model.Listing, error)
	ListingByID(id uint) (*model.Listing, error)
}

// partnerSearcher runs searches on external partner deployments
type partnerSearcher interface {
	SearchMembers(ctx context.Context, partner *model.ExternalPartner, f model.MemberSearchFilters) partnerclient.Result
	SearchListings(ctx context.Context, partner *model.ExternalPartner, f model.ListingSearchFilters) partnerclient.Result
}

// MemberSearchResult merges local and partner member results. Errors lists
// partners that failed; partial results are still returned.
type MemberSearchResult struct {
	Members        []model.FederatedMemberView `json:"members"`
	Total          int                         `json:"total"`
	FiltersApplied model.MemberSearchFilters   `json:"filters_applied"`
	Remote         []json.RawMessage           `json:"remote,omitempty"`
	Errors         []string                    `json:"errors,omitempty"`
	HasMore        bool                        `json:"has_more"`
}

// ListingSearchResult merges local and partner listing results
type ListingSearchResult struct {
	Listings []model.Listing   `json:"listings"`
	Remote   []json.RawMessage `json:"remote,omitempty"`
	Errors   []string          `json:"errors,omitempty"`
}

// SearchService runs federated searches: the local index filtered to
// partnered tenants, plus a concurrent fan-out to external partners. One
// slow or dead partner costs its own results, never the whole search.
type SearchService struct {
	store        searchStore
	users        *UserService
	partnerships *PartnershipService
	partners     *PartnerAdminService
	remote       partnerSearcher
	logger       *zap.Logger
}

func NewSearchService(store searchStore, users *UserService, partnerships *PartnershipService, partners *PartnerAdminService, remote partnerSearcher, logger *zap.Logger) *SearchService {
	return &SearchService{store: store, users: users, partnerships: partnerships, partners: partners, remote: remote, logger: logger}
}

// SearchMembers searches members across the tenant's own community, its
// partnered tenants that grant profile access, and its external partners
func (s *SearchService) SearchMembers(ctx context.Context, tenantID uint, f model.MemberSearchFilters) (*MemberSearchResult, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 25
	}

	partnerTenants, err := s.partnerships.ActivePartners(tenantID, model.CapabilityProfiles)
	if err != nil {
		return nil, err
	}

	result := &MemberSearchResult{Members: []model.FederatedMemberView{}}
	if len(partnerTenants) > 0 {
		f.TenantIDs = append([]uint{tenantID}, partnerTenants...)

		members, err := s.store.Search(f)
		if err != nil {
			return nil, err
		}
		for i := range members {
			settings, err := s.users.Settings(members[i].ID, members[i].TenantID)
			if err != nil {
				return nil, err
			}
			result.Members = append(result.Members, members[i].FederatedView(settings))
		}
		result.Total = len(members)
		result.HasMore = len(members) == f.Limit
	}
	result.FiltersApplied = f

	remote, errs := s.fanOut(ctx, tenantID, func(ctx context.Context, p *model.ExternalPartner) partnerclient.Result {
		return s.remote.SearchMembers(ctx, p, f)
	})
	result.Remote = remote
	result.Errors = errs
	return result, nil
}

// SearchListings searches listings across partnered tenants that grant
// listing access, plus external partners
func (s *SearchService) SearchListings(ctx context.Context, tenantID uint, f model.ListingSearchFilters) (*ListingSearchResult, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 25
	}

	partnerTenants, err := s.partnerships.ActivePartners(tenantID, model.CapabilityListings)
	if err != nil {
		return nil, err
	}
	f.TenantIDs = append([]uint{tenantID}, partnerTenants...)

	listings, err := s.store.SearchListings(f)
	if err != nil {
		return nil, err
	}

	result := &ListingSearchResult{Listings: listings}
	remote, errs := s.fanOut(ctx, tenantID, func(ctx context.Context, p *model.ExternalPartner) partnerclient.Result {
		return s.remote.SearchListings(ctx, p, f)
	})
	result.Remote = remote
	result.Errors = errs
	return result, nil
}

// LocalMembers searches only this deployment's opted-in members. Inbound
// partner requests use this so a partner never triggers a second fan-out.
func (s *SearchService) LocalMembers(tenantID uint, f model.MemberSearchFilters) ([]model.FederatedMemberView, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 25
	}
	f.TenantIDs = []uint{tenantID}

	members, err := s.store.Search(f)
	if err != nil {
		return nil, err
	}
	views := make([]model.FederatedMemberView, 0, len(members))
	for i := range members {
		settings, err := s.users.Settings(members[i].ID, members[i].TenantID)
		if err != nil {
			return nil, err
		}
		views = append(views, members[i].FederatedView(settings))
	}
	return views, nil
}

// LocalListings searches only this deployment's listings
func (s *SearchService) LocalListings(tenantID uint, f model.ListingSearchFilters) ([]model.Listing, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 25
	}
	f.TenantIDs = []uint{tenantID}
	return s.store.SearchListings(f)
}

// GetProfile returns a member's federated view after a gateway-shaped
// privacy projection
func (s *SearchService) GetProfile(userID, tenantID uint) (*model.FederatedMemberView, error) {
	member, err := s.store.ByID(userID, tenantID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	settings, err := s.users.Settings(userID, tenantID)
	if err != nil {
		return nil, err
	}
	if !settings.FederationOptin {
		return nil, ErrMemberNotFound
	}
	view := member.FederatedView(settings)
	return &view, nil
}

// GetListing returns a listing by id
func (s *SearchService) GetListing(id uint) (*model.Listing, error) {
	l, err := s.store.ListingByID(id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrListingNotFound
	}
	return l, nil
}

// fanOut calls every usable external partner concurrently and collects
// payloads and per-partner errors
func (s *SearchService) fanOut(ctx context.Context, tenantID uint, call func(context.Context, *model.ExternalPartner) partnerclient.Result) ([]json.RawMessage, []string) {
	partners, err := s.partners.ListUsable(tenantID)
	if err != nil {
		s.logger.Warn("partner list unavailable for search fan-out", zap.Error(err))
		return nil, []string{fmt.Sprintf("partner registry: %v", err)}
	}
	if len(partners) == 0 {
		return nil, nil
	}

	type outcome struct {
		name string
		res  partnerclient.Result
	}
	results := make(chan outcome, len(partners))
	var wg sync.WaitGroup
	for i := range partners {
		wg.Add(1)
		go func(p model.ExternalPartner) {
			defer wg.Done()
			results <- outcome{name: p.Name, res: call(ctx, &p)}
		}(partners[i])
	}
	wg.Wait()
	close(results)

	var remote []json.RawMessage
	var errs []string
	for o := range results {
		if o.res.Success {
			remote = append(remote, o.res.Data)
		} else {
			errs = append(errs, fmt.Sprintf("%s: %s", o.name, o.res.Error))
		}
	}
	return remote, errs
}
