package service

import (
	"sync"
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"go.uber.org/zap"
)

// featureStore is what the feature service needs from persistence
type featureStore interface {
	SystemControls() (*model.SystemControls, error)
	SaveSystemControls(sc *model.SystemControls) error
	TenantFeature(tenantID uint, key string) (enabled, found bool, err error)
	SetTenantFeature(tenantID uint, key string, enabled bool, updatedBy *uint) error
	TenantFeatures(tenantID uint) ([]model.TenantFeature, error)
	IsWhitelisted(tenantID uint) (bool, error)
	AddToWhitelist(entry *model.WhitelistEntry) error
	RemoveFromWhitelist(tenantID uint) error
	Whitelist() ([]model.WhitelistEntry, error)
}

const featureCacheTTL = 30 * time.Second

// FeatureService answers "is federation on" questions. System controls are
// cached briefly because every gateway check reads them; writes clear the
// cache so admin changes apply immediately on this instance.
type FeatureService struct {
	store  featureStore
	audit  *AuditService
	logger *zap.Logger

	mu       sync.RWMutex
	cached   *model.SystemControls
	cachedAt time.Time
}

func NewFeatureService(store featureStore, audit *AuditService, logger *zap.Logger) *FeatureService {
	return &FeatureService{store: store, audit: audit, logger: logger}
}

// SystemControls returns the (possibly cached) singleton
func (s *FeatureService) SystemControls() (*model.SystemControls, error) {
	s.mu.RLock()
	if s.cached != nil && time.Since(s.cachedAt) < featureCacheTTL {
		sc := *s.cached
		s.mu.RUnlock()
		return &sc, nil
	}
	s.mu.RUnlock()

	sc, err := s.store.SystemControls()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	copied := *sc
	s.cached = &copied
	s.cachedAt = time.Now()
	s.mu.Unlock()
	return sc, nil
}

// ClearCache drops the cached controls
func (s *FeatureService) ClearCache() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// IsGloballyEnabled reports whether federation is on at all. Emergency
// lockdown overrides the enable flag.
func (s *FeatureService) IsGloballyEnabled() (bool, error) {
	sc, err := s.SystemControls()
	if err != nil {
		return false, err
	}
	return sc.FederationEnabled && !sc.EmergencyLockdown, nil
}

// IsTenantEnabled reports whether the tenant participates in federation.
// Requires the global switch, the whitelist when whitelist mode is on, and
// the tenant's own opt-in toggle.
func (s *FeatureService) IsTenantEnabled(tenantID uint) (bool, error) {
	sc, err := s.SystemControls()
	if err != nil {
		return false, err
	}
	if !sc.FederationEnabled || sc.EmergencyLockdown {
		return false, nil
	}
	if sc.WhitelistMode {
		ok, err := s.store.IsWhitelisted(tenantID)
		if err != nil || !ok {
			return false, err
		}
	}
	enabled, found, err := s.store.TenantFeature(tenantID, model.TenantFederationEnabled)
	if err != nil {
		return false, err
	}
	// Absence of a row means the tenant never opted in
	return found && enabled, nil
}

// IsOperationAllowed reports whether a capability is usable by a tenant:
// the tenant must be enabled, the capability switched on system-wide, and
// not switched off by the tenant. A missing tenant capability row counts
// as on; only federation membership itself is opt-in.
func (s *FeatureService) IsOperationAllowed(tenantID uint, cap model.Capability) (bool, error) {
	enabled, err := s.IsTenantEnabled(tenantID)
	if err != nil || !enabled {
		return false, err
	}
	sc, err := s.SystemControls()
	if err != nil {
		return false, err
	}
	if !sc.CapabilityEnabled(cap) {
		return false, nil
	}
	on, found, err := s.store.TenantFeature(tenantID, model.TenantCapabilityKey(cap))
	if err != nil {
		return false, err
	}
	if found && !on {
		return false, nil
	}
	return true, nil
}

// UpdateSystemControls writes admin changes to the singleton
func (s *FeatureService) UpdateSystemControls(sc *model.SystemControls, updatedBy *uint) error {
	sc.UpdatedBy = updatedBy
	if err := s.store.SaveSystemControls(sc); err != nil {
		return err
	}
	s.ClearCache()
	s.audit.Log("system_controls_updated", nil, nil, updatedBy, model.Metadata{
		"federation_enabled": sc.FederationEnabled,
		"whitelist_mode":     sc.WhitelistMode,
		"max_level":          sc.MaxFederationLevel,
	})
	return nil
}

// EmergencyLockdown halts all federation activity immediately
func (s *FeatureService) EmergencyLockdown(reason string, by *uint) error {
	sc, err := s.store.SystemControls()
	if err != nil {
		return err
	}
	sc.EmergencyLockdown = true
	sc.EmergencyLockdownReason = reason
	sc.EmergencyLockdownBy = by
	sc.UpdatedBy = by
	if err := s.store.SaveSystemControls(sc); err != nil {
		return err
	}
	s.ClearCache()
	s.logger.Warn("emergency lockdown engaged", zap.String("reason", reason))
	s.audit.LogLevel("emergency_lockdown", model.AuditCritical, nil, nil, by, model.Metadata{
		"reason": reason,
	})
	return nil
}

// LiftLockdown re-enables federation after an emergency lockdown
func (s *FeatureService) LiftLockdown(by *uint) error {
	sc, err := s.store.SystemControls()
	if err != nil {
		return err
	}
	sc.EmergencyLockdown = false
	sc.EmergencyLockdownReason = ""
	sc.EmergencyLockdownBy = nil
	sc.UpdatedBy = by
	if err := s.store.SaveSystemControls(sc); err != nil {
		return err
	}
	s.ClearCache()
	s.audit.LogLevel("emergency_lockdown_lifted", model.AuditCritical, nil, nil, by, nil)
	return nil
}

// SetTenantFeature toggles a tenant feature
func (s *FeatureService) SetTenantFeature(tenantID uint, key string, enabled bool, by *uint) error {
	if err := s.store.SetTenantFeature(tenantID, key, enabled, by); err != nil {
		return err
	}
	s.audit.Log("tenant_feature_updated", uintPtr(tenantID), nil, by, model.Metadata{
		"key":     key,
		"enabled": enabled,
	})
	return nil
}

// TenantFeatures returns all toggles for a tenant
func (s *FeatureService) TenantFeatures(tenantID uint) ([]model.TenantFeature, error) {
	return s.store.TenantFeatures(tenantID)
}

// AddToWhitelist approves a tenant for whitelist mode
func (s *FeatureService) AddToWhitelist(tenantID, approvedBy uint, notes string) error {
	entry := &model.WhitelistEntry{TenantID: tenantID, ApprovedBy: approvedBy, Notes: notes}
	if err := s.store.AddToWhitelist(entry); err != nil {
		return err
	}
	s.audit.Log("tenant_whitelisted", uintPtr(tenantID), nil, uintPtr(approvedBy), nil)
	return nil
}

// RemoveFromWhitelist revokes a tenant's whitelist entry
func (s *FeatureService) RemoveFromWhitelist(tenantID uint, by *uint) error {
	if err := s.store.RemoveFromWhitelist(tenantID); err != nil {
		return err
	}
	s.audit.Log("tenant_whitelist_removed", uintPtr(tenantID), nil, by, nil)
	return nil
}

// Whitelist returns every whitelist entry
func (s *FeatureService) Whitelist() ([]model.WhitelistEntry, error) {
	return s.store.Whitelist()
}
