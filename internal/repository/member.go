package repository

import (
	"errors"
	"strings"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MemberRepository reads members and listings for federation. Member CRUD
// lives outside this service; federation only projects and searches.
type MemberRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewMemberRepository(db *gorm.DB, logger *zap.Logger) *MemberRepository {
	return &MemberRepository{db: db, logger: logger}
}

// ByID returns the member or nil when absent
func (r *MemberRepository) ByID(userID, tenantID uint) (*model.Member, error) {
	var m model.Member
	err := r.db.Where("id = ? AND tenant_id = ?", userID, tenantID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// Search returns opted-in members matching the filters. Only active members
// with federation_optin and appear_in_federated_search set are considered.
func (r *MemberRepository) Search(f model.MemberSearchFilters) ([]model.Member, error) {
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	q := r.db.Model(&model.Member{}).
		Joins("JOIN user_federation_settings s ON s.user_id = members.id AND s.tenant_id = members.tenant_id").
		Where("members.status = ?", "active").
		Where("s.federation_optin = ? AND s.appear_in_federated_search = ?", true, true)

	if len(f.TenantIDs) > 0 {
		q = q.Where("members.tenant_id IN ?", f.TenantIDs)
	}
	if f.Query != "" {
		like := "%" + strings.ToLower(f.Query) + "%"
		q = q.Where("LOWER(members.name) LIKE ? OR LOWER(members.bio) LIKE ? OR LOWER(members.skills) LIKE ?",
			like, like, like)
	}
	for _, skill := range f.Skills {
		q = q.Where("LOWER(members.skills) LIKE ?", "%"+strings.ToLower(skill)+"%")
	}
	if f.ServiceReach != "" {
		q = q.Where("s.service_reach IN ?", model.ReachSet(f.ServiceReach))
	}
	if f.MessagingEnabled != nil {
		q = q.Where("s.messaging_enabled_federated = ?", *f.MessagingEnabled)
	}
	if f.TransactionsEnabled != nil {
		q = q.Where("s.transactions_enabled_federated = ?", *f.TransactionsEnabled)
	}
	if f.Latitude != nil && f.Longitude != nil && f.RadiusKm != nil {
		// Haversine distance in km
		q = q.Where(
			"members.latitude IS NOT NULL AND members.longitude IS NOT NULL AND "+
				"6371 * acos(least(1.0, cos(radians(?)) * cos(radians(members.latitude)) * "+
				"cos(radians(members.longitude) - radians(?)) + sin(radians(?)) * sin(radians(members.latitude)))) <= ?",
			*f.Latitude, *f.Longitude, *f.Latitude, *f.RadiusKm)
	}

	switch f.SortBy {
	case "newest":
		q = q.Order("members.created_at DESC")
	default:
		q = q.Order("members.name ASC")
	}

	var out []model.Member
	err := q.Limit(limit).Offset(f.Offset).Find(&out).Error
	return out, err
}

// SearchListings returns active listings matching the filters
func (r *MemberRepository) SearchListings(f model.ListingSearchFilters) ([]model.Listing, error) {
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	q := r.db.Model(&model.Listing{}).Where("status = ?", "active")
	if len(f.TenantIDs) > 0 {
		q = q.Where("tenant_id IN ?", f.TenantIDs)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Query != "" {
		like := "%" + strings.ToLower(f.Query) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var out []model.Listing
	err := q.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&out).Error
	return out, err
}

// ListingByID returns the listing or nil when absent
func (r *MemberRepository) ListingByID(id uint) (*model.Listing, error) {
	var l model.Listing
	if err := r.db.First(&l, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

// DirectoryTenants lists active tenants that opted into the public
// federation directory
func (r *MemberRepository) DirectoryTenants() ([]model.Tenant, error) {
	var tenants []model.Tenant
	err := r.db.
		Joins("JOIN tenant_features f ON f.tenant_id = tenants.id AND f.key = ? AND f.enabled", model.TenantAppearInDirectory).
		Where("tenants.status = ?", "active").
		Order("tenants.name ASC").
		Find(&tenants).Error
	return tenants, err
}

// TenantByID returns the tenant or nil when absent
func (r *MemberRepository) TenantByID(id uint) (*model.Tenant, error) {
	var t model.Tenant
	if err := r.db.First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
