package handler

import (
	"net/http"
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/service"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/pkg/logger"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TokenHandler serves the OAuth2 token endpoint for external partners
type TokenHandler struct {
	tokens *service.TokenService
}

func NewTokenHandler(tokens *service.TokenService) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

// IssueToken handles OAuth2 token requests. Only the client_credentials
// grant is supported; clients are external partner registrations.
func (h *TokenHandler) IssueToken(c echo.Context) error {
	log := logger.FromEcho(c)

	if err := c.Request().ParseForm(); err != nil {
		log.Error("Failed to parse form data", zap.Error(err))
		prometheus.InvalidTokenRequestCounter.With(map[string]string{"error_type": "invalid_form"}).Inc()
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "invalid_request",
			"error_description": "Could not parse form data",
		})
	}

	grantType := c.FormValue("grant_type")
	prometheus.TokenRequestCounter.With(map[string]string{"grant_type": grantType}).Inc()

	if grantType != "client_credentials" {
		log.Warn("Unsupported grant type", zap.String("grant_type", grantType))
		prometheus.InvalidTokenRequestCounter.With(map[string]string{"error_type": "unsupported_grant_type"}).Inc()
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "unsupported_grant_type",
			"error_description": "Only the client_credentials grant is supported",
		})
	}

	clientID, clientSecret := clientCredentials(c)
	if clientID == "" || clientSecret == "" {
		prometheus.InvalidTokenRequestCounter.With(map[string]string{"error_type": "missing_credentials"}).Inc()
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error":             "invalid_client",
			"error_description": "Client authentication required",
		})
	}

	var ttl time.Duration
	if v := c.FormValue("expires_in"); v != "" {
		if seconds, err := time.ParseDuration(v + "s"); err == nil {
			ttl = seconds
		}
	}

	resp, err := h.tokens.Grant(clientID, clientSecret, c.FormValue("scope"), ttl)
	if err != nil {
		log.Warn("Token grant rejected", zap.String("client_id", clientID), zap.Error(err))
		prometheus.InvalidTokenRequestCounter.With(map[string]string{"error_type": "invalid_client"}).Inc()
		return serviceError(c, err)
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, resp)
}

// clientCredentials reads credentials from Basic auth or the form body
func clientCredentials(c echo.Context) (string, string) {
	if id, secret, ok := c.Request().BasicAuth(); ok {
		return id, secret
	}
	return c.FormValue("client_id"), c.FormValue("client_secret")
}
