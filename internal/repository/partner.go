package repository

import (
	"errors"
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PartnerRepository persists external partner registrations
type PartnerRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewPartnerRepository(db *gorm.DB, logger *zap.Logger) *PartnerRepository {
	return &PartnerRepository{db: db, logger: logger}
}

// Create inserts a partner row
func (r *PartnerRepository) Create(p *model.ExternalPartner) error {
	return r.db.Create(p).Error
}

// Save writes the full partner row
func (r *PartnerRepository) Save(p *model.ExternalPartner) error {
	return r.db.Save(p).Error
}

// ByID returns the partner or nil when absent
func (r *PartnerRepository) ByID(id uint) (*model.ExternalPartner, error) {
	var p model.ExternalPartner
	if err := r.db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ByPlatformID returns the partner with the platform id, or nil
func (r *PartnerRepository) ByPlatformID(platformID string) (*model.ExternalPartner, error) {
	var p model.ExternalPartner
	err := r.db.Where("platform_id = ?", platformID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ByAPIKeyHash returns the partner whose inbound API key hashes to the
// given SHA-256 hex digest, or nil
func (r *PartnerRepository) ByAPIKeyHash(hash string) (*model.ExternalPartner, error) {
	var p model.ExternalPartner
	err := r.db.Where("api_key_lookup_hash = ?", hash).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ListByTenant returns the tenant's partner registrations
func (r *PartnerRepository) ListByTenant(tenantID uint) ([]model.ExternalPartner, error) {
	var out []model.ExternalPartner
	err := r.db.Where("tenant_id = ?", tenantID).Order("created_at").Find(&out).Error
	return out, err
}

// Touch records a successful authentication without loading the row
func (r *PartnerRepository) Touch(id uint) error {
	return r.db.Model(&model.ExternalPartner{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_used_at":  time.Now(),
			"request_count": gorm.Expr("request_count + 1"),
		}).Error
}

// Delete soft-deletes the partner
func (r *PartnerRepository) Delete(id uint) error {
	return r.db.Delete(&model.ExternalPartner{}, id).Error
}
