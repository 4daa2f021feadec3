package service

import (
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/prometheus"
	"go.uber.org/zap"
)

// partnershipStore is what the partnership service needs from persistence
type partnershipStore interface {
	Create(p *model.Partnership) error
	ByID(id uint) (*model.Partnership, error)
	ByPair(tenantA, tenantB uint) (*model.Partnership, error)
	Save(p *model.Partnership) error
	SaveIfStatus(p *model.Partnership, expected string) (bool, error)
	ListByTenant(tenantID uint, status string) ([]model.Partnership, error)
	ListPendingIncoming(tenantID uint) ([]model.Partnership, error)
	ListOutgoing(tenantID uint) ([]model.Partnership, error)
	ListCounterProposals(tenantID uint) ([]model.Partnership, error)
	ListAll(status string, limit int) ([]model.Partnership, error)
	Stats() (*model.PartnershipStats, error)
	ActivePartnersWith(tenantID uint, cap model.Capability) ([]uint, error)
}

// PartnershipService runs the partnership lifecycle: request, approve or
// counter-propose, suspend, resume, terminate. Transitions use a status
// guard so concurrent admins cannot race the same row into two states.
type PartnershipService struct {
	store    partnershipStore
	features *FeatureService
	audit    *AuditService
	logger   *zap.Logger
}

func NewPartnershipService(store partnershipStore, features *FeatureService, audit *AuditService, logger *zap.Logger) *PartnershipService {
	return &PartnershipService{store: store, features: features, audit: audit, logger: logger}
}

// Request creates a pending partnership between two tenants. When a
// terminated partnership exists for the pair, its row is reused so the
// unique pair index holds.
func (s *PartnershipService) Request(fromTenant, toTenant uint, level int, requestedBy uint, notes string) (*model.Partnership, error) {
	if fromTenant == toTenant {
		return nil, ErrSelfPartnership
	}
	if level < model.LevelDiscovery || level > model.LevelIntegrated {
		return nil, ErrInvalidLevel
	}

	for _, t := range []uint{fromTenant, toTenant} {
		enabled, err := s.features.IsTenantEnabled(t)
		if err != nil {
			return nil, err
		}
		if !enabled {
			return nil, ErrFederationDisabled
		}
	}

	sc, err := s.features.SystemControls()
	if err != nil {
		return nil, err
	}
	if level > sc.MaxFederationLevel {
		level = sc.MaxFederationLevel
	}

	existing, err := s.store.ByPair(fromTenant, toTenant)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if existing != nil {
		if existing.Status != model.PartnershipTerminated {
			return nil, ErrPartnershipExists
		}
		// Reuse the terminated row as a fresh request
		p := existing
		p.Status = model.PartnershipPending
		p.Level = level
		p.SetPermissions(model.DefaultPermissions(level))
		p.RequestedByTenant = fromTenant
		p.RequestedBy = requestedBy
		p.Notes = notes
		p.ApprovedBy = nil
		p.ApprovedAt = nil
		p.ClearCounterProposal()
		p.TerminatedBy = nil
		p.TerminatedAt = nil
		p.TerminationReason = ""
		p.StatusChangedAt = now
		ok, err := s.store.SaveIfStatus(p, model.PartnershipTerminated)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrInvalidState
		}
		s.logRequest(p, fromTenant, toTenant, requestedBy, true)
		return p, nil
	}

	p := &model.Partnership{
		Status:            model.PartnershipPending,
		Level:             level,
		RequestedByTenant: fromTenant,
		RequestedBy:       requestedBy,
		Notes:             notes,
		StatusChangedAt:   now,
	}
	p.TenantA, p.TenantB = model.CanonicalPair(fromTenant, toTenant)
	p.SetPermissions(model.DefaultPermissions(level))
	if err := s.store.Create(p); err != nil {
		return nil, err
	}
	s.logRequest(p, fromTenant, toTenant, requestedBy, false)
	return p, nil
}

func (s *PartnershipService) logRequest(p *model.Partnership, from, to, requestedBy uint, reused bool) {
	s.audit.Log("partnership_requested", uintPtr(from), uintPtr(to), uintPtr(requestedBy), model.Metadata{
		"partnership_id": p.ID,
		"level":          p.Level,
		"reused_row":     reused,
	})
}

// Approve activates a pending request. Only the receiving tenant may
// approve; the requester cannot approve their own request. A non-nil perms
// patch is merged over the requested level's defaults.
func (s *PartnershipService) Approve(id, approvingTenant, approvedBy uint, perms *model.PermissionPatch) (*model.Partnership, error) {
	p, err := s.pending(id, approvingTenant)
	if err != nil {
		return nil, err
	}
	if p.RequestedByTenant == approvingTenant {
		return nil, ErrNotAuthorized
	}

	now := time.Now()
	if perms != nil {
		p.SetPermissions(perms.Apply(p.Permissions()))
	}
	p.Status = model.PartnershipActive
	p.ApprovedBy = &approvedBy
	p.ApprovedAt = &now
	p.ClearCounterProposal()
	p.StatusChangedAt = now
	if err := s.transition(p, model.PartnershipPending); err != nil {
		return nil, err
	}
	s.audit.Log("partnership_approved", uintPtr(approvingTenant), uintPtr(p.PartnerOf(approvingTenant)), uintPtr(approvedBy), model.Metadata{
		"partnership_id": p.ID,
		"level":          p.Level,
	})
	return p, nil
}

// Decline removes a pending request by terminating it
func (s *PartnershipService) Decline(id, decliningTenant, declinedBy uint, reason string) (*model.Partnership, error) {
	p, err := s.pending(id, decliningTenant)
	if err != nil {
		return nil, err
	}
	if p.RequestedByTenant == decliningTenant {
		return nil, ErrNotAuthorized
	}

	now := time.Now()
	p.Status = model.PartnershipTerminated
	p.TerminatedBy = &declinedBy
	p.TerminatedAt = &now
	p.TerminationReason = reason
	p.ClearCounterProposal()
	p.StatusChangedAt = now
	if err := s.transition(p, model.PartnershipPending); err != nil {
		return nil, err
	}
	s.audit.Log("partnership_declined", uintPtr(decliningTenant), uintPtr(p.PartnerOf(decliningTenant)), uintPtr(declinedBy), model.Metadata{
		"partnership_id": p.ID,
		"reason":         reason,
	})
	return p, nil
}

// CounterPropose answers a pending request with different terms. The request
// stays pending; the original requester accepts or rejects the counter.
func (s *PartnershipService) CounterPropose(id, counteringTenant, counteredBy uint, proposedLevel int, message string, perms *model.PermissionPatch) (*model.Partnership, error) {
	if proposedLevel < model.LevelDiscovery || proposedLevel > model.LevelIntegrated {
		return nil, ErrInvalidLevel
	}
	p, err := s.pending(id, counteringTenant)
	if err != nil {
		return nil, err
	}
	if p.RequestedByTenant == counteringTenant {
		return nil, ErrNotAuthorized
	}

	now := time.Now()
	p.ProposedLevel = &proposedLevel
	p.CounterProposedBy = &counteredBy
	p.CounterProposedAt = &now
	p.CounterMessage = message
	p.CounterPermissions = perms
	if err := s.transition(p, model.PartnershipPending); err != nil {
		return nil, err
	}
	s.audit.Log("partnership_counter_proposed", uintPtr(counteringTenant), uintPtr(p.PartnerOf(counteringTenant)), uintPtr(counteredBy), model.Metadata{
		"partnership_id": p.ID,
		"proposed_level": proposedLevel,
	})
	return p, nil
}

// AcceptCounter activates the partnership under the countered terms. Only
// the original requesting tenant may accept.
func (s *PartnershipService) AcceptCounter(id, acceptingTenant, acceptedBy uint) (*model.Partnership, error) {
	p, err := s.pending(id, acceptingTenant)
	if err != nil {
		return nil, err
	}
	if p.RequestedByTenant != acceptingTenant || p.CounterProposedAt == nil {
		return nil, ErrInvalidState
	}

	now := time.Now()
	p.Level = *p.ProposedLevel
	base := model.DefaultPermissions(p.Level)
	if p.CounterPermissions != nil {
		base = p.CounterPermissions.Apply(base)
	}
	p.SetPermissions(base)
	p.Status = model.PartnershipActive
	p.ApprovedBy = &acceptedBy
	p.ApprovedAt = &now
	p.ClearCounterProposal()
	p.StatusChangedAt = now
	if err := s.transition(p, model.PartnershipPending); err != nil {
		return nil, err
	}
	s.audit.Log("partnership_counter_accepted", uintPtr(acceptingTenant), uintPtr(p.PartnerOf(acceptingTenant)), uintPtr(acceptedBy), model.Metadata{
		"partnership_id": p.ID,
		"level":          p.Level,
	})
	return p, nil
}

// RejectCounter withdraws the request after a counter-proposal
func (s *PartnershipService) RejectCounter(id, rejectingTenant, rejectedBy uint) (*model.Partnership, error) {
	p, err := s.pending(id, rejectingTenant)
	if err != nil {
		return nil, err
	}
	if p.RequestedByTenant != rejectingTenant || p.CounterProposedAt == nil {
		return nil, ErrInvalidState
	}

	now := time.Now()
	p.Status = model.PartnershipTerminated
	p.TerminatedBy = &rejectedBy
	p.TerminatedAt = &now
	p.TerminationReason = "counter-proposal rejected"
	p.ClearCounterProposal()
	p.StatusChangedAt = now
	if err := s.transition(p, model.PartnershipPending); err != nil {
		return nil, err
	}
	s.audit.Log("partnership_counter_rejected", uintPtr(rejectingTenant), uintPtr(p.PartnerOf(rejectingTenant)), uintPtr(rejectedBy), nil)
	return p, nil
}

// Suspend pauses an active partnership. Either side may suspend.
func (s *PartnershipService) Suspend(id, tenantID, by uint, reason string) (*model.Partnership, error) {
	p, err := s.involved(id, tenantID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PartnershipActive {
		return nil, ErrInvalidState
	}

	p.Status = model.PartnershipSuspended
	p.Notes = reason
	p.StatusChangedAt = time.Now()
	if err := s.transition(p, model.PartnershipActive); err != nil {
		return nil, err
	}
	s.audit.LogLevel("partnership_suspended", model.AuditWarning, uintPtr(tenantID), uintPtr(p.PartnerOf(tenantID)), uintPtr(by), model.Metadata{
		"partnership_id": p.ID,
		"reason":         reason,
	})
	return p, nil
}

// Resume reactivates a suspended partnership
func (s *PartnershipService) Resume(id, tenantID, by uint) (*model.Partnership, error) {
	p, err := s.involved(id, tenantID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PartnershipSuspended {
		return nil, ErrInvalidState
	}

	p.Status = model.PartnershipActive
	p.StatusChangedAt = time.Now()
	if err := s.transition(p, model.PartnershipSuspended); err != nil {
		return nil, err
	}
	s.audit.Log("partnership_resumed", uintPtr(tenantID), uintPtr(p.PartnerOf(tenantID)), uintPtr(by), model.Metadata{
		"partnership_id": p.ID,
	})
	return p, nil
}

// Terminate ends a partnership permanently. Either side may terminate an
// active or suspended partnership.
func (s *PartnershipService) Terminate(id, tenantID, by uint, reason string) (*model.Partnership, error) {
	p, err := s.involved(id, tenantID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PartnershipActive && p.Status != model.PartnershipSuspended {
		return nil, ErrInvalidState
	}

	now := time.Now()
	prior := p.Status
	p.Status = model.PartnershipTerminated
	p.TerminatedBy = &by
	p.TerminatedAt = &now
	p.TerminationReason = reason
	p.StatusChangedAt = now
	if err := s.transition(p, prior); err != nil {
		return nil, err
	}
	s.audit.LogLevel("partnership_terminated", model.AuditWarning, uintPtr(tenantID), uintPtr(p.PartnerOf(tenantID)), uintPtr(by), model.Metadata{
		"partnership_id": p.ID,
		"reason":         reason,
	})
	return p, nil
}

// UpdatePermissions patches an active partnership's capability flags
func (s *PartnershipService) UpdatePermissions(id, tenantID, by uint, patch model.PermissionPatch) (*model.Partnership, error) {
	p, err := s.involved(id, tenantID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PartnershipActive {
		return nil, ErrInvalidState
	}

	p.SetPermissions(patch.Apply(p.Permissions()))
	if err := s.transition(p, model.PartnershipActive); err != nil {
		return nil, err
	}
	s.audit.Log("partnership_permissions_updated", uintPtr(tenantID), uintPtr(p.PartnerOf(tenantID)), uintPtr(by), model.Metadata{
		"partnership_id": p.ID,
	})
	return p, nil
}

// Get returns a partnership visible to the tenant
func (s *PartnershipService) Get(id, tenantID uint) (*model.Partnership, error) {
	return s.involved(id, tenantID)
}

// GetByPair returns the partnership between two tenants, ignoring
// terminated rows
func (s *PartnershipService) GetByPair(tenantA, tenantB uint) (*model.Partnership, error) {
	p, err := s.store.ByPair(tenantA, tenantB)
	if err != nil {
		return nil, err
	}
	if p == nil || p.Status == model.PartnershipTerminated {
		return nil, ErrPartnershipNotFound
	}
	return p, nil
}

// ListForTenant returns the tenant's partnerships, optionally by status
func (s *PartnershipService) ListForTenant(tenantID uint, status string) ([]model.Partnership, error) {
	return s.store.ListByTenant(tenantID, status)
}

// PendingIncoming returns requests awaiting the tenant's decision
func (s *PartnershipService) PendingIncoming(tenantID uint) ([]model.Partnership, error) {
	return s.store.ListPendingIncoming(tenantID)
}

// Outgoing returns the tenant's unanswered requests
func (s *PartnershipService) Outgoing(tenantID uint) ([]model.Partnership, error) {
	return s.store.ListOutgoing(tenantID)
}

// CounterProposals returns counters awaiting the tenant's response
func (s *PartnershipService) CounterProposals(tenantID uint) ([]model.Partnership, error) {
	return s.store.ListCounterProposals(tenantID)
}

// All returns partnerships across tenants for system dashboards
func (s *PartnershipService) All(status string, limit int) ([]model.Partnership, error) {
	return s.store.ListAll(status, limit)
}

// Stats aggregates partnership counts
func (s *PartnershipService) Stats() (*model.PartnershipStats, error) {
	return s.store.Stats()
}

// ActivePartners returns tenant ids the tenant can use a capability with
func (s *PartnershipService) ActivePartners(tenantID uint, cap model.Capability) ([]uint, error) {
	return s.store.ActivePartnersWith(tenantID, cap)
}

// involved loads a partnership and checks the tenant is one of its sides
func (s *PartnershipService) involved(id, tenantID uint) (*model.Partnership, error) {
	p, err := s.store.ByID(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPartnershipNotFound
	}
	if !p.Involves(tenantID) {
		return nil, ErrNotInvolved
	}
	return p, nil
}

// pending loads an involved partnership and requires pending status
func (s *PartnershipService) pending(id, tenantID uint) (*model.Partnership, error) {
	p, err := s.involved(id, tenantID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PartnershipPending {
		return nil, ErrInvalidState
	}
	return p, nil
}

// transition persists a guarded state change, mapping a lost race to
// ErrInvalidState
func (s *PartnershipService) transition(p *model.Partnership, expected string) error {
	ok, err := s.store.SaveIfStatus(p, expected)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Warn("partnership transition lost a concurrent update",
			zap.Uint("partnership_id", p.ID),
			zap.String("expected", expected),
			zap.String("attempted", p.Status))
		return ErrInvalidState
	}
	prometheus.RecordPartnershipTransition(p.Status)
	return nil
}
