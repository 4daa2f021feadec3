package middleware

import (
	"net/http"
	"strings"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/pkg/jwtutil"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// UserAuthMiddleware validates platform user JWTs on tenant-facing routes
func UserAuthMiddleware(jwtUtil *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("Missing authorization header")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing authorization header"})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				log.Warn("Invalid authorization header format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid authorization header format"})
			}

			claims, err := jwtUtil.ValidateToken(parts[1])
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid or expired token"})
			}

			c.Set("user", claims)
			c.Set("logger", log.With(
				zap.Uint("user_id", claims.UserID),
				zap.Uint("tenant_id", claims.TenantID)))

			return next(c)
		}
	}
}

// AdminOnlyMiddleware requires a tenant admin role. Must run after
// UserAuthMiddleware.
func AdminOnlyMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims := CurrentUser(c)
		if claims == nil || !claims.IsAdmin() {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "Admin access required"})
		}
		return next(c)
	}
}

// SuperAdminOnlyMiddleware requires the platform admin role. Must run after
// UserAuthMiddleware.
func SuperAdminOnlyMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims := CurrentUser(c)
		if claims == nil || !claims.IsSuperAdmin() {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "Platform admin access required"})
		}
		return next(c)
	}
}

// CurrentUser returns the authenticated user's claims, or nil
func CurrentUser(c echo.Context) *jwtutil.UserClaims {
	claims, ok := c.Get("user").(*jwtutil.UserClaims)
	if !ok {
		return nil
	}
	return claims
}
