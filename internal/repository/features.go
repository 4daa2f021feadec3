package repository

import (
	"errors"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FeatureRepository persists the system controls singleton, per-tenant
// feature toggles and the whitelist
type FeatureRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewFeatureRepository(db *gorm.DB, logger *zap.Logger) *FeatureRepository {
	return &FeatureRepository{db: db, logger: logger}
}

// SystemControls returns the singleton row, creating it with everything off
// on first access
func (r *FeatureRepository) SystemControls() (*model.SystemControls, error) {
	var sc model.SystemControls
	err := r.db.First(&sc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		sc = model.SystemControls{ID: 1, MaxFederationLevel: 1}
		if err := r.db.Create(&sc).Error; err != nil {
			return nil, err
		}
		return &sc, nil
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// SaveSystemControls writes the singleton row
func (r *FeatureRepository) SaveSystemControls(sc *model.SystemControls) error {
	return r.db.Save(sc).Error
}

// TenantFeature returns a tenant toggle, with found reporting whether the
// row exists
func (r *FeatureRepository) TenantFeature(tenantID uint, key string) (enabled, found bool, err error) {
	var tf model.TenantFeature
	err = r.db.Where("tenant_id = ? AND key = ?", tenantID, key).First(&tf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, false, nil
		}
		return false, false, err
	}
	return tf.Enabled, true, nil
}

// SetTenantFeature upserts a tenant toggle row
func (r *FeatureRepository) SetTenantFeature(tenantID uint, key string, enabled bool, updatedBy *uint) error {
	tf := model.TenantFeature{TenantID: tenantID, Key: key, Enabled: enabled, UpdatedBy: updatedBy}
	return r.db.Save(&tf).Error
}

// TenantFeatures returns every toggle row for a tenant
func (r *FeatureRepository) TenantFeatures(tenantID uint) ([]model.TenantFeature, error) {
	var out []model.TenantFeature
	err := r.db.Where("tenant_id = ?", tenantID).Order("key").Find(&out).Error
	return out, err
}

// IsWhitelisted reports whether the tenant has a whitelist entry
func (r *FeatureRepository) IsWhitelisted(tenantID uint) (bool, error) {
	var n int64
	err := r.db.Model(&model.WhitelistEntry{}).Where("tenant_id = ?", tenantID).Count(&n).Error
	return n > 0, err
}

// AddToWhitelist upserts the tenant's whitelist entry
func (r *FeatureRepository) AddToWhitelist(entry *model.WhitelistEntry) error {
	return r.db.Save(entry).Error
}

// RemoveFromWhitelist deletes the tenant's whitelist entry
func (r *FeatureRepository) RemoveFromWhitelist(tenantID uint) error {
	return r.db.Where("tenant_id = ?", tenantID).Delete(&model.WhitelistEntry{}).Error
}

// Whitelist returns every whitelist entry
func (r *FeatureRepository) Whitelist() ([]model.WhitelistEntry, error) {
	var out []model.WhitelistEntry
	err := r.db.Order("created_at").Find(&out).Error
	return out, err
}
