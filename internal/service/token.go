package service

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// partnerLookup is what the token service needs from the partner registry
type partnerLookup interface {
	ByPlatformID(platformID string) (*model.ExternalPartner, error)
	Touch(id uint) error
}

// PartnerClaims are the claims carried by issued partner tokens
type PartnerClaims struct {
	Scopes    string `json:"scopes"`
	TenantID  uint   `json:"tenant_id"`
	PartnerID uint   `json:"partner_id"`
	jwt.RegisteredClaims
}

// TokenService issues and validates bearer tokens for external partners
// via the client_credentials grant. Tokens are HS256 over a service-wide
// secret, or RS256 when an RSA key is configured.
type TokenService struct {
	partners   partnerLookup
	audit      *AuditService
	logger     *zap.Logger
	issuer     string
	hmacSecret []byte
	rsaKey     *rsa.PrivateKey
	defaultTTL time.Duration
	maxTTL     time.Duration
}

func NewTokenService(partners partnerLookup, audit *AuditService, logger *zap.Logger, issuer string, hmacSecret []byte, rsaKey *rsa.PrivateKey, defaultTTL, maxTTL time.Duration) *TokenService {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	if maxTTL <= 0 {
		maxTTL = 24 * time.Hour
	}
	return &TokenService{
		partners:   partners,
		audit:      audit,
		logger:     logger,
		issuer:     issuer,
		hmacSecret: hmacSecret,
		rsaKey:     rsaKey,
		defaultTTL: defaultTTL,
		maxTTL:     maxTTL,
	}
}

// TokenResponse is the OAuth2 token endpoint response shape
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// Grant runs the client_credentials grant: the client id is the partner's
// platform id and the secret is verified against the stored bcrypt hash.
// The requested scope may narrow, never widen, the partner's grant.
func (s *TokenService) Grant(clientID, clientSecret, requestedScope string, ttl time.Duration) (*TokenResponse, error) {
	partner, err := s.partners.ByPlatformID(clientID)
	if err != nil {
		return nil, err
	}
	if partner == nil || !partner.IsUsable() || partner.SecretBcryptHash == "" {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(partner.SecretBcryptHash), []byte(clientSecret)) != nil {
		s.audit.LogLevel("api_token_rejected", model.AuditWarning, uintPtr(partner.TenantID), nil, nil, model.Metadata{
			"platform_id": partner.PlatformID,
		})
		return nil, ErrInvalidCredentials
	}

	scopes := narrowScopes(partner.Scopes, requestedScope)

	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if ttl > s.maxTTL {
		ttl = s.maxTTL
	}

	token, err := s.issue(partner, scopes, ttl)
	if err != nil {
		return nil, err
	}
	if err := s.partners.Touch(partner.ID); err != nil {
		s.logger.Warn("failed to record partner token issuance", zap.Error(err))
	}
	s.audit.Log("api_token_issued", uintPtr(partner.TenantID), nil, nil, model.Metadata{
		"platform_id": partner.PlatformID,
		"scopes":      scopes,
		"ttl_seconds": int64(ttl.Seconds()),
	})
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
		Scope:       scopes,
	}, nil
}

func (s *TokenService) issue(partner *model.ExternalPartner, scopes string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := PartnerClaims{
		Scopes:    scopes,
		TenantID:  partner.TenantID,
		PartnerID: partner.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   partner.PlatformID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        newJTI(partner.PlatformID, now),
		},
	}

	if s.rsaKey != nil {
		return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.rsaKey)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.hmacSecret)
}

// Validate parses and verifies a partner token, returning its claims. The
// signing algorithm is pinned so an alg-swapped token is rejected.
func (s *TokenService) Validate(tokenString string) (*PartnerClaims, error) {
	claims := &PartnerClaims{}
	var keyFunc jwt.Keyfunc
	var methods []string
	if s.rsaKey != nil {
		methods = []string{jwt.SigningMethodRS256.Alg()}
		keyFunc = func(t *jwt.Token) (interface{}, error) { return &s.rsaKey.PublicKey, nil }
	} else {
		methods = []string{jwt.SigningMethodHS256.Alg()}
		keyFunc = func(t *jwt.Token) (interface{}, error) { return s.hmacSecret, nil }
	}

	_, err := jwt.ParseWithClaims(tokenString, claims, keyFunc,
		jwt.WithValidMethods(methods),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}

// narrowScopes intersects the requested scopes with the granted ones; an
// empty request gets the full grant
func narrowScopes(granted, requested string) string {
	if strings.TrimSpace(requested) == "" {
		return granted
	}
	grantedSet := map[string]bool{}
	for _, g := range strings.Fields(granted) {
		grantedSet[g] = true
	}
	var out []string
	for _, r := range strings.Fields(requested) {
		if grantedSet[r] {
			out = append(out, r)
		}
	}
	return strings.Join(out, " ")
}

// newJTI derives a unique token id from the subject and issue time
func newJTI(subject string, now time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", subject, now.UnixNano(), model.GenerateSecureToken())))
	return hex.EncodeToString(sum[:16])
}
