package service

import (
	"errors"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/prometheus"
	"go.uber.org/zap"
)

// Decision is the outcome of an authorization check. Reason is set only
// when access is denied.
type Decision struct {
	Allowed bool    `json:"allowed"`
	Reason  *string `json:"reason,omitempty"`
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Allowed: false, Reason: &reason} }

// Gateway is the single authorization chokepoint for cross-tenant access.
// Checks run cheapest first: same-tenant short-circuit, then feature
// switches, then the partnership grant, then the target user's privacy.
type Gateway struct {
	features     *FeatureService
	partnerships *PartnershipService
	users        *UserService
	logger       *zap.Logger
}

func NewGateway(features *FeatureService, partnerships *PartnershipService, users *UserService, logger *zap.Logger) *Gateway {
	return &Gateway{features: features, partnerships: partnerships, users: users, logger: logger}
}

// check runs the shared chain for a capability between two tenants. A nil
// targetUser skips the privacy step (tenant-scoped resources).
func (g *Gateway) check(cap model.Capability, actorTenant, targetTenant uint, targetUser *uint) (d Decision, err error) {
	defer func() {
		if err == nil {
			prometheus.RecordGatewayCheck(string(cap), d.Allowed)
		}
	}()

	if actorTenant == targetTenant {
		return allow(), nil
	}

	for _, t := range []uint{actorTenant, targetTenant} {
		ok, err := g.features.IsOperationAllowed(t, cap)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return deny("federation is not enabled for this operation"), nil
		}
	}

	p, err := g.partnerships.GetByPair(actorTenant, targetTenant)
	if err != nil {
		if errors.Is(err, ErrPartnershipNotFound) {
			return deny("no partnership between these communities"), nil
		}
		return Decision{}, err
	}
	if p.Status == model.PartnershipSuspended {
		return deny("partnership is suspended"), nil
	}
	if p.Status != model.PartnershipActive {
		return deny("partnership is not active"), nil
	}
	if !p.Permissions().Has(cap) {
		return deny("partnership does not include this capability"), nil
	}

	if targetUser != nil {
		settings, err := g.users.Settings(*targetUser, targetTenant)
		if err != nil {
			return Decision{}, err
		}
		if !settings.AllowsCapability(cap) {
			return deny("user has not opted into this"), nil
		}
	}
	return allow(), nil
}

// CanViewProfile checks whether an actor may view a member's profile
func (g *Gateway) CanViewProfile(actorTenant, targetTenant, targetUser uint) (Decision, error) {
	return g.check(model.CapabilityProfiles, actorTenant, targetTenant, &targetUser)
}

// CanSendMessage checks whether an actor may message a member
func (g *Gateway) CanSendMessage(actorTenant, targetTenant, targetUser uint) (Decision, error) {
	return g.check(model.CapabilityMessaging, actorTenant, targetTenant, &targetUser)
}

// CanPerformTransaction checks whether an actor may send time credits to a
// member
func (g *Gateway) CanPerformTransaction(actorTenant, targetTenant, targetUser uint) (Decision, error) {
	return g.check(model.CapabilityTransactions, actorTenant, targetTenant, &targetUser)
}

// CanViewListing checks whether an actor may view a tenant's listings
func (g *Gateway) CanViewListing(actorTenant, targetTenant uint) (Decision, error) {
	return g.check(model.CapabilityListings, actorTenant, targetTenant, nil)
}

// CanViewEvent checks whether an actor may view a tenant's events
func (g *Gateway) CanViewEvent(actorTenant, targetTenant uint) (Decision, error) {
	return g.check(model.CapabilityEvents, actorTenant, targetTenant, nil)
}

// CanViewGroup checks whether an actor may view a tenant's groups
func (g *Gateway) CanViewGroup(actorTenant, targetTenant uint) (Decision, error) {
	return g.check(model.CapabilityGroups, actorTenant, targetTenant, nil)
}

// PartnerTenants returns the tenant ids the tenant holds an active
// partnership grant for under a capability
func (g *Gateway) PartnerTenants(tenantID uint, cap model.Capability) ([]uint, error) {
	return g.partnerships.ActivePartners(tenantID, cap)
}

// StatusSummary reports, per capability, whether the tenant can currently
// use it at all
func (g *Gateway) StatusSummary(tenantID uint) (map[model.Capability]bool, error) {
	out := make(map[model.Capability]bool, len(model.Capabilities()))
	for _, cap := range model.Capabilities() {
		ok, err := g.features.IsOperationAllowed(tenantID, cap)
		if err != nil {
			return nil, err
		}
		out[cap] = ok
	}
	return out, nil
}
