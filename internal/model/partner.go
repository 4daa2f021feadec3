package model

import (
	"time"

	"gorm.io/gorm"
)

// Partner auth methods
const (
	AuthAPIKey = "api_key"
	AuthHMAC   = "hmac"
	AuthOAuth2 = "oauth2"
)

// Partner statuses
const (
	PartnerActive   = "active"
	PartnerDisabled = "disabled"
)

// ExternalPartner is a non-platform counterpart reachable over HTTP. The
// record doubles as the inbound credential for the partner: outbound calls
// are signed with the stored (encrypted) secrets, and inbound requests are
// authenticated against the hashes.
type ExternalPartner struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	TenantID   uint   `gorm:"index" json:"tenant_id"`
	Name       string `gorm:"size:255" json:"name"`
	PlatformID string `gorm:"size:64;uniqueIndex" json:"platform_id"`

	BaseURL    string `gorm:"size:500" json:"base_url"`
	APIPath    string `gorm:"size:255;default:/api/v1/federation" json:"api_path"`
	AuthMethod string `gorm:"size:16;default:api_key" json:"auth_method"`

	// Credential material, encrypted at rest (random nonce per write)
	APIKeyEncrypted        string `gorm:"size:500" json:"-"`
	SigningSecretEncrypted string `gorm:"size:500" json:"-"`
	OAuthClientSecretEncrypted string `gorm:"size:500" json:"-"`

	// Deterministic lookup hash (SHA-256 hex) for inbound API-key auth,
	// and a bcrypt hash for inbound client-secret verification.
	APIKeyLookupHash string `gorm:"size:64;index" json:"-"`
	SecretBcryptHash string `gorm:"size:100" json:"-"`

	// Space-separated scopes granted to the partner for inbound calls
	Scopes string `gorm:"size:500" json:"scopes"`

	SigningRequired bool       `json:"signing_required"`
	RateLimit       int        `gorm:"default:1000" json:"rate_limit"`
	Status          string     `gorm:"size:16;default:active;index" json:"status"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`

	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	RequestCount int64      `json:"request_count"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a platform id when none was supplied
func (p *ExternalPartner) BeforeCreate(tx *gorm.DB) error {
	if p.PlatformID == "" {
		p.PlatformID = generateSecureID("ptn_")
	}
	return nil
}

// IsUsable reports whether the partner may authenticate right now
func (p *ExternalPartner) IsUsable() bool {
	if p.Status != PartnerActive {
		return false
	}
	return p.ExpiresAt == nil || p.ExpiresAt.After(time.Now())
}

// HasScope reports whether the partner's grant covers a scope
func (p *ExternalPartner) HasScope(scope string) bool {
	for _, s := range splitFields(p.Scopes) {
		if s == scope {
			return true
		}
	}
	return false
}
