package service

import (
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"go.uber.org/zap"
)

// settingsStore is what the user service needs from persistence
type settingsStore interface {
	ByUser(userID uint) (*model.UserFederationSettings, error)
	Save(s *model.UserFederationSettings) error
	OptedInUsers(tenantID uint) ([]uint, error)
}

// SettingsUpdate is a partial update of a user's federation settings; nil
// fields are left alone
type SettingsUpdate struct {
	FederationOptin              *bool   `json:"federation_optin,omitempty"`
	ProfileVisibleFederated      *bool   `json:"profile_visible_federated,omitempty"`
	MessagingEnabledFederated    *bool   `json:"messaging_enabled_federated,omitempty"`
	TransactionsEnabledFederated *bool   `json:"transactions_enabled_federated,omitempty"`
	AppearInFederatedSearch      *bool   `json:"appear_in_federated_search,omitempty"`
	ShowSkillsFederated          *bool   `json:"show_skills_federated,omitempty"`
	ShowLocationFederated        *bool   `json:"show_location_federated,omitempty"`
	ServiceReach                 *string `json:"service_reach,omitempty"`
	TravelRadiusKm               *int    `json:"travel_radius_km,omitempty"`
}

// UserService manages per-user federation opt-in settings
type UserService struct {
	store  settingsStore
	audit  *AuditService
	logger *zap.Logger
}

func NewUserService(store settingsStore, audit *AuditService, logger *zap.Logger) *UserService {
	return &UserService{store: store, audit: audit, logger: logger}
}

// Settings returns the user's settings, falling back to the all-off
// defaults when no row exists
func (s *UserService) Settings(userID, tenantID uint) (*model.UserFederationSettings, error) {
	stored, err := s.store.ByUser(userID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		def := model.DefaultUserSettings(userID, tenantID)
		return &def, nil
	}
	return stored, nil
}

// Update applies a partial settings update. Flipping the opt-in on stamps
// OptedInAt; flipping it off clears every sharing flag so a later re-opt-in
// starts conservative.
func (s *UserService) Update(userID, tenantID uint, upd SettingsUpdate) (*model.UserFederationSettings, error) {
	settings, err := s.Settings(userID, tenantID)
	if err != nil {
		return nil, err
	}

	if upd.FederationOptin != nil && *upd.FederationOptin != settings.FederationOptin {
		if *upd.FederationOptin {
			now := time.Now()
			settings.FederationOptin = true
			settings.OptedInAt = &now
		} else {
			*settings = model.DefaultUserSettings(userID, tenantID)
		}
	}
	if upd.ProfileVisibleFederated != nil {
		settings.ProfileVisibleFederated = *upd.ProfileVisibleFederated
	}
	if upd.MessagingEnabledFederated != nil {
		settings.MessagingEnabledFederated = *upd.MessagingEnabledFederated
	}
	if upd.TransactionsEnabledFederated != nil {
		settings.TransactionsEnabledFederated = *upd.TransactionsEnabledFederated
	}
	if upd.AppearInFederatedSearch != nil {
		settings.AppearInFederatedSearch = *upd.AppearInFederatedSearch
	}
	if upd.ShowSkillsFederated != nil {
		settings.ShowSkillsFederated = *upd.ShowSkillsFederated
	}
	if upd.ShowLocationFederated != nil {
		settings.ShowLocationFederated = *upd.ShowLocationFederated
	}
	if upd.ServiceReach != nil {
		settings.ServiceReach = model.NormalizeReach(*upd.ServiceReach)
	}
	if upd.TravelRadiusKm != nil {
		settings.TravelRadiusKm = upd.TravelRadiusKm
	}

	if err := s.store.Save(settings); err != nil {
		return nil, err
	}
	s.audit.Log("user_settings_updated", uintPtr(tenantID), nil, uintPtr(userID), model.Metadata{
		"federation_optin": settings.FederationOptin,
		"service_reach":    settings.ServiceReach,
	})
	return settings, nil
}

// OptOut withdraws the user from federation entirely
func (s *UserService) OptOut(userID, tenantID uint) (*model.UserFederationSettings, error) {
	off := false
	return s.Update(userID, tenantID, SettingsUpdate{FederationOptin: &off})
}

// HasOptedIn reports whether the user participates in federation
func (s *UserService) HasOptedIn(userID, tenantID uint) (bool, error) {
	settings, err := s.Settings(userID, tenantID)
	if err != nil {
		return false, err
	}
	return settings.FederationOptin, nil
}

// OptedInUsers returns the tenant's opted-in user ids
func (s *UserService) OptedInUsers(tenantID uint) ([]uint, error) {
	return s.store.OptedInUsers(tenantID)
}
