package middleware

import (
	"bytes"
	"crypto/hmac"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/partnerclient"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/service"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// APIKeyHeader carries the partner API key on inbound requests
const APIKeyHeader = "X-API-Key"

// PartnerAuth authenticates inbound partner requests. Methods are tried in
// order: HMAC signature headers, then a JWT bearer token, then the API key
// header. The first method whose headers are present decides; there is no
// fallthrough on failure.
type PartnerAuth struct {
	partners  *service.PartnerAdminService
	tokens    *service.TokenService
	tolerance time.Duration
	logger    *zap.Logger
}

func NewPartnerAuth(partners *service.PartnerAdminService, tokens *service.TokenService, tolerance time.Duration, logger *zap.Logger) *PartnerAuth {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &PartnerAuth{partners: partners, tokens: tokens, tolerance: tolerance, logger: logger}
}

// Middleware resolves the partner and stores it in the request context
func (a *PartnerAuth) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromEcho(c)

		var partner *model.ExternalPartner
		var scopes string
		var err error

		switch {
		case c.Request().Header.Get(partnerclient.HeaderSignature) != "":
			partner, err = a.verifyHMAC(c)
			if partner != nil {
				scopes = partner.Scopes
			}
		case strings.HasPrefix(c.Request().Header.Get("Authorization"), "Bearer "):
			partner, scopes, err = a.verifyBearer(c)
		case c.Request().Header.Get(APIKeyHeader) != "":
			partner, err = a.partners.AuthenticateAPIKey(c.Request().Header.Get(APIKeyHeader))
			if partner != nil {
				scopes = partner.Scopes
			}
		default:
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error":             "invalid_client",
				"error_description": "Partner authentication required",
			})
		}

		if err != nil || partner == nil {
			log.Warn("Partner authentication failed",
				zap.String("remote_ip", c.RealIP()),
				zap.Error(err))
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error":             "invalid_client",
				"error_description": "Partner authentication failed",
			})
		}

		if partner.SigningRequired && c.Request().Header.Get(partnerclient.HeaderSignature) == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error":             "invalid_client",
				"error_description": "Signed requests required for this partner",
			})
		}

		c.Set("partner", partner)
		c.Set("partner_scopes", scopes)
		c.Set("logger", log.With(zap.String("partner", partner.PlatformID)))
		return next(c)
	}
}

// RequireScope gates a route on a partner scope. Must run after Middleware.
func RequireScope(scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			granted, _ := c.Get("partner_scopes").(string)
			for _, s := range strings.Fields(granted) {
				if s == scope {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, echo.Map{
				"error":             "insufficient_scope",
				"error_description": "Partner grant does not cover " + scope,
			})
		}
	}
}

// CurrentPartner returns the authenticated partner, or nil
func CurrentPartner(c echo.Context) *model.ExternalPartner {
	p, ok := c.Get("partner").(*model.ExternalPartner)
	if !ok {
		return nil
	}
	return p
}

// verifyHMAC checks the signature headers against the partner's shared
// secret. The timestamp must be within the tolerance window.
func (a *PartnerAuth) verifyHMAC(c echo.Context) (*model.ExternalPartner, error) {
	platformID := c.Request().Header.Get(partnerclient.HeaderPlatformID)
	tsHeader := c.Request().Header.Get(partnerclient.HeaderTimestamp)
	signature := c.Request().Header.Get(partnerclient.HeaderSignature)
	if platformID == "" || tsHeader == "" {
		return nil, service.ErrInvalidCredentials
	}

	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return nil, service.ErrInvalidCredentials
	}
	age := time.Since(time.Unix(ts, 0))
	if age > a.tolerance || age < -a.tolerance {
		return nil, service.ErrInvalidCredentials
	}

	partner, err := a.partners.ByPlatformID(platformID)
	if err != nil {
		return nil, err
	}
	if partner == nil || !partner.IsUsable() {
		return nil, service.ErrInvalidCredentials
	}
	secret, err := a.partners.SigningSecret(partner)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, err
	}
	c.Request().Body = io.NopCloser(bytes.NewReader(body))

	expected := partnerclient.Sign(secret, c.Request().Method, c.Request().URL.RequestURI(), tsHeader, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, service.ErrInvalidCredentials
	}

	if err := a.partners.Touch(partner.ID); err != nil {
		a.logger.Warn("failed to record partner authentication", zap.Error(err))
	}
	return partner, nil
}

// verifyBearer validates an issued partner token and resolves its partner
func (a *PartnerAuth) verifyBearer(c echo.Context) (*model.ExternalPartner, string, error) {
	tokenString := strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
	claims, err := a.tokens.Validate(tokenString)
	if err != nil {
		return nil, "", err
	}
	partner, err := a.partners.ByPlatformID(claims.Subject)
	if err != nil {
		return nil, "", err
	}
	if partner == nil || !partner.IsUsable() {
		return nil, "", service.ErrInvalidCredentials
	}
	return partner, claims.Scopes, nil
}
