package repository

import (
	"errors"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PartnershipRepository persists partnerships and their transitions
type PartnershipRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPartnershipRepository creates a new partnership repository
func NewPartnershipRepository(db *gorm.DB, logger *zap.Logger) *PartnershipRepository {
	return &PartnershipRepository{db: db, logger: logger}
}

// Create inserts a partnership row
func (r *PartnershipRepository) Create(p *model.Partnership) error {
	p.TenantA, p.TenantB = model.CanonicalPair(p.TenantA, p.TenantB)
	return r.db.Create(p).Error
}

// ByID returns the partnership or nil when absent
func (r *PartnershipRepository) ByID(id uint) (*model.Partnership, error) {
	var p model.Partnership
	if err := r.db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ByPair returns the partnership between two tenants regardless of argument
// order, or nil when absent. Terminated rows are included; callers filter.
func (r *PartnershipRepository) ByPair(tenantA, tenantB uint) (*model.Partnership, error) {
	a, b := model.CanonicalPair(tenantA, tenantB)
	var p model.Partnership
	err := r.db.Where("tenant_a = ? AND tenant_b = ?", a, b).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Save writes the full row without a status guard
func (r *PartnershipRepository) Save(p *model.Partnership) error {
	return r.db.Save(p).Error
}

// SaveIfStatus writes the full row only while the stored status still
// matches expected. A false return means a concurrent transition won.
func (r *PartnershipRepository) SaveIfStatus(p *model.Partnership, expected string) (bool, error) {
	res := r.db.Model(&model.Partnership{}).
		Where("id = ? AND status = ?", p.ID, expected).
		Select("*").Omit("id", "created_at").
		Updates(p)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListByTenant returns partnerships involving the tenant, optionally
// filtered by status, newest first
func (r *PartnershipRepository) ListByTenant(tenantID uint, status string) ([]model.Partnership, error) {
	q := r.db.Where("tenant_a = ? OR tenant_b = ?", tenantID, tenantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []model.Partnership
	err := q.Order("created_at DESC").Find(&out).Error
	return out, err
}

// ListPendingIncoming returns pending requests addressed to the tenant that
// have not been counter-proposed yet
func (r *PartnershipRepository) ListPendingIncoming(tenantID uint) ([]model.Partnership, error) {
	var out []model.Partnership
	err := r.db.
		Where("(tenant_a = ? OR tenant_b = ?)", tenantID, tenantID).
		Where("status = ? AND requested_by_tenant <> ? AND counter_proposed_at IS NULL",
			model.PartnershipPending, tenantID).
		Order("created_at DESC").Find(&out).Error
	return out, err
}

// ListOutgoing returns pending requests the tenant sent, without a pending
// counter-proposal
func (r *PartnershipRepository) ListOutgoing(tenantID uint) ([]model.Partnership, error) {
	var out []model.Partnership
	err := r.db.
		Where("status = ? AND requested_by_tenant = ? AND counter_proposed_at IS NULL",
			model.PartnershipPending, tenantID).
		Order("created_at DESC").Find(&out).Error
	return out, err
}

// ListCounterProposals returns the tenant's outgoing requests that received
// a counter-proposal awaiting its response
func (r *PartnershipRepository) ListCounterProposals(tenantID uint) ([]model.Partnership, error) {
	var out []model.Partnership
	err := r.db.
		Where("status = ? AND requested_by_tenant = ? AND counter_proposed_at IS NOT NULL",
			model.PartnershipPending, tenantID).
		Order("counter_proposed_at DESC").Find(&out).Error
	return out, err
}

// ListAll returns partnerships across all tenants, optionally filtered by
// status, capped at limit
func (r *PartnershipRepository) ListAll(status string, limit int) ([]model.Partnership, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := r.db.Order("created_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []model.Partnership
	err := q.Find(&out).Error
	return out, err
}

// Stats aggregates partnership counts plus the most recently updated rows
func (r *PartnershipRepository) Stats() (*model.PartnershipStats, error) {
	stats := &model.PartnershipStats{}

	type row struct {
		Status string
		N      int64
	}
	var rows []row
	if err := r.db.Model(&model.Partnership{}).
		Select("status, count(*) as n").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, rw := range rows {
		stats.Total += rw.N
		switch rw.Status {
		case model.PartnershipActive:
			stats.Active = rw.N
		case model.PartnershipPending:
			stats.Pending = rw.N
		case model.PartnershipSuspended:
			stats.Suspended = rw.N
		case model.PartnershipTerminated:
			stats.Terminated = rw.N
		}
	}

	if err := r.db.Order("updated_at DESC").Limit(5).Find(&stats.Recent).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// ActivePartnersWith returns tenant ids holding an active partnership with
// the tenant that grants the capability
func (r *PartnershipRepository) ActivePartnersWith(tenantID uint, cap model.Capability) ([]uint, error) {
	partnerships, err := r.ListByTenant(tenantID, model.PartnershipActive)
	if err != nil {
		return nil, err
	}
	var out []uint
	for i := range partnerships {
		if partnerships[i].Permissions().Has(cap) {
			out = append(out, partnerships[i].PartnerOf(tenantID))
		}
	}
	return out, nil
}
