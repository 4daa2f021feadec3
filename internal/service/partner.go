package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/partnerclient"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/pkg/secrets"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// partnerStore is what the partner admin service needs from persistence
type partnerStore interface {
	Create(p *model.ExternalPartner) error
	Save(p *model.ExternalPartner) error
	ByID(id uint) (*model.ExternalPartner, error)
	ByPlatformID(platformID string) (*model.ExternalPartner, error)
	ByAPIKeyHash(hash string) (*model.ExternalPartner, error)
	ListByTenant(tenantID uint) ([]model.ExternalPartner, error)
	Touch(id uint) error
	Delete(id uint) error
}

// partnerProber tests connectivity to a partner deployment
type partnerProber interface {
	TestConnection(ctx context.Context, partner *model.ExternalPartner) partnerclient.Result
}

// PartnerCredentials is returned exactly once, at registration or rotation.
// The plaintext values are not stored and cannot be recovered later.
type PartnerCredentials struct {
	PlatformID   string `json:"platform_id"`
	APIKey       string `json:"api_key"`
	ClientSecret string `json:"client_secret"`
}

// RegisterPartnerInput describes a new external partner
type RegisterPartnerInput struct {
	TenantID   uint   `json:"tenant_id"`
	Name       string `json:"name"`
	BaseURL    string `json:"base_url"`
	APIPath    string `json:"api_path"`
	AuthMethod string `json:"auth_method"`
	Scopes     string `json:"scopes"`
	// SigningSecret is the shared secret for outbound HMAC signing when
	// the partner expects signed requests
	SigningSecret   string `json:"signing_secret"`
	SigningRequired bool   `json:"signing_required"`
	RateLimit       int    `json:"rate_limit"`
}

// PartnerAdminService manages the external partner registry. Secrets are
// encrypted at rest; inbound lookups go through hashes so a database read
// never yields a usable credential.
type PartnerAdminService struct {
	store  partnerStore
	prober partnerProber
	box    *secrets.Box
	audit  *AuditService
	logger *zap.Logger
}

func NewPartnerAdminService(store partnerStore, prober partnerProber, box *secrets.Box, audit *AuditService, logger *zap.Logger) *PartnerAdminService {
	return &PartnerAdminService{store: store, prober: prober, box: box, audit: audit, logger: logger}
}

// Register creates a partner and mints its credentials. The returned
// plaintext credentials are shown once to the administrator.
func (s *PartnerAdminService) Register(in RegisterPartnerInput, by *uint) (*model.ExternalPartner, *PartnerCredentials, error) {
	p := &model.ExternalPartner{
		TenantID:        in.TenantID,
		Name:            strings.TrimSpace(in.Name),
		BaseURL:         strings.TrimSuffix(strings.TrimSpace(in.BaseURL), "/"),
		AuthMethod:      in.AuthMethod,
		Scopes:          in.Scopes,
		SigningRequired: in.SigningRequired,
		Status:          model.PartnerActive,
	}
	if in.APIPath != "" {
		p.APIPath = in.APIPath
	}
	if p.AuthMethod == "" {
		p.AuthMethod = model.AuthAPIKey
	}
	if in.RateLimit > 0 {
		p.RateLimit = in.RateLimit
	}

	creds, err := s.mintCredentials(p, in.SigningSecret)
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.Create(p); err != nil {
		return nil, nil, err
	}
	creds.PlatformID = p.PlatformID

	s.audit.Log("external_partner_registered", uintPtr(in.TenantID), nil, by, model.Metadata{
		"partner_id":  p.ID,
		"platform_id": p.PlatformID,
		"auth_method": p.AuthMethod,
	})
	return p, creds, nil
}

// RotateCredentials replaces the partner's API key and client secret
func (s *PartnerAdminService) RotateCredentials(partnerID, tenantID uint, by *uint) (*PartnerCredentials, error) {
	p, err := s.Get(partnerID, tenantID)
	if err != nil {
		return nil, err
	}
	creds, err := s.mintCredentials(p, "")
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(p); err != nil {
		return nil, err
	}
	creds.PlatformID = p.PlatformID
	s.audit.LogLevel("external_partner_credentials_rotated", model.AuditWarning, uintPtr(tenantID), nil, by, model.Metadata{
		"partner_id": p.ID,
	})
	return creds, nil
}

// mintCredentials generates and stores fresh credential material on the row
func (s *PartnerAdminService) mintCredentials(p *model.ExternalPartner, signingSecret string) (*PartnerCredentials, error) {
	apiKey := "fk_" + model.GenerateSecureToken()
	clientSecret := model.GenerateSecureToken()

	encKey, err := s.box.Encrypt(apiKey)
	if err != nil {
		return nil, err
	}
	secretHash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	p.APIKeyEncrypted = encKey
	p.APIKeyLookupHash = HashAPIKey(apiKey)
	p.SecretBcryptHash = string(secretHash)

	if signingSecret != "" {
		encSecret, err := s.box.Encrypt(signingSecret)
		if err != nil {
			return nil, err
		}
		p.SigningSecretEncrypted = encSecret
	}
	return &PartnerCredentials{APIKey: apiKey, ClientSecret: clientSecret}, nil
}

// HashAPIKey computes the deterministic lookup digest of an API key
func HashAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// AuthenticateAPIKey resolves an inbound API key to a usable partner
func (s *PartnerAdminService) AuthenticateAPIKey(apiKey string) (*model.ExternalPartner, error) {
	if apiKey == "" {
		return nil, ErrInvalidCredentials
	}
	p, err := s.store.ByAPIKeyHash(HashAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if p == nil || !p.IsUsable() {
		return nil, ErrInvalidCredentials
	}
	if err := s.store.Touch(p.ID); err != nil {
		s.logger.Warn("failed to record partner authentication", zap.Error(err))
	}
	return p, nil
}

// ByPlatformID resolves a platform id to its partner row, or nil
func (s *PartnerAdminService) ByPlatformID(platformID string) (*model.ExternalPartner, error) {
	return s.store.ByPlatformID(platformID)
}

// SigningSecret decrypts the partner's HMAC secret for verification
func (s *PartnerAdminService) SigningSecret(p *model.ExternalPartner) (string, error) {
	if p.SigningSecretEncrypted == "" {
		return "", ErrInvalidCredentials
	}
	return s.box.Decrypt(p.SigningSecretEncrypted)
}

// Touch records partner activity
func (s *PartnerAdminService) Touch(id uint) error {
	return s.store.Touch(id)
}

// Get returns a partner owned by the tenant
func (s *PartnerAdminService) Get(partnerID, tenantID uint) (*model.ExternalPartner, error) {
	p, err := s.store.ByID(partnerID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.TenantID != tenantID {
		return nil, ErrPartnerNotFound
	}
	return p, nil
}

// List returns the tenant's partner registrations
func (s *PartnerAdminService) List(tenantID uint) ([]model.ExternalPartner, error) {
	return s.store.ListByTenant(tenantID)
}

// ListUsable returns the tenant's partners that can receive calls now
func (s *PartnerAdminService) ListUsable(tenantID uint) ([]model.ExternalPartner, error) {
	all, err := s.store.ListByTenant(tenantID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.IsUsable() {
			out = append(out, p)
		}
	}
	return out, nil
}

// TestConnection probes the partner's health endpoint
func (s *PartnerAdminService) TestConnection(ctx context.Context, partnerID, tenantID uint) partnerclient.Result {
	p, err := s.Get(partnerID, tenantID)
	if err != nil {
		return partnerclient.Result{Error: err.Error()}
	}
	return s.prober.TestConnection(ctx, p)
}

// SetStatus enables or disables a partner
func (s *PartnerAdminService) SetStatus(partnerID, tenantID uint, status string, by *uint) error {
	if status != model.PartnerActive && status != model.PartnerDisabled {
		return ErrInvalidState
	}
	p, err := s.Get(partnerID, tenantID)
	if err != nil {
		return err
	}
	p.Status = status
	if err := s.store.Save(p); err != nil {
		return err
	}
	s.audit.Log("external_partner_status_changed", uintPtr(tenantID), nil, by, model.Metadata{
		"partner_id": p.ID,
		"status":     status,
	})
	return nil
}

// Remove soft-deletes a partner registration
func (s *PartnerAdminService) Remove(partnerID, tenantID uint, by *uint) error {
	p, err := s.Get(partnerID, tenantID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(p.ID); err != nil {
		return err
	}
	s.audit.LogLevel("external_partner_removed", model.AuditWarning, uintPtr(tenantID), nil, by, model.Metadata{
		"partner_id": p.ID,
	})
	return nil
}
