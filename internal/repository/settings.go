package repository

import (
	"errors"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SettingsRepository persists per-user federation settings
type SettingsRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewSettingsRepository(db *gorm.DB, logger *zap.Logger) *SettingsRepository {
	return &SettingsRepository{db: db, logger: logger}
}

// ByUser returns the user's settings or nil when the user never saved any
func (r *SettingsRepository) ByUser(userID uint) (*model.UserFederationSettings, error) {
	var s model.UserFederationSettings
	err := r.db.Where("user_id = ?", userID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Save upserts the settings row keyed by user id
func (r *SettingsRepository) Save(s *model.UserFederationSettings) error {
	return r.db.Save(s).Error
}

// OptedInUsers returns user ids in the tenant that opted into federation
func (r *SettingsRepository) OptedInUsers(tenantID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&model.UserFederationSettings{}).
		Where("tenant_id = ? AND federation_optin = ?", tenantID, true).
		Pluck("user_id", &ids).Error
	return ids, err
}
