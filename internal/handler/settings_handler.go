package handler

import (
	"net/http"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/middleware"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/realtime"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/service"
	"github.com/labstack/echo/v4"
)

// SettingsHandler serves per-user federation settings routes
type SettingsHandler struct {
	users    *service.UserService
	gateway  *service.Gateway
	realtime *realtime.Dispatcher
}

func NewSettingsHandler(users *service.UserService, gateway *service.Gateway, rt *realtime.Dispatcher) *SettingsHandler {
	return &SettingsHandler{users: users, gateway: gateway, realtime: rt}
}

// Get returns the caller's federation settings
func (h *SettingsHandler) Get(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	settings, err := h.users.Settings(claims.UserID, claims.TenantID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, settings)
}

// Update applies a partial settings update. Joining the federated
// network for the first time announces the member to their community.
func (h *SettingsHandler) Update(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	var upd service.SettingsUpdate
	if err := c.Bind(&upd); err != nil {
		return badRequest(c, "invalid request body")
	}

	wasOptedIn, err := h.users.HasOptedIn(claims.UserID, claims.TenantID)
	if err != nil {
		return serviceError(c, err)
	}

	settings, err := h.users.Update(claims.UserID, claims.TenantID, upd)
	if err != nil {
		return serviceError(c, err)
	}

	if !wasOptedIn && settings.FederationOptin {
		h.realtime.BroadcastNewMember(c.Request().Context(), claims.TenantID, claims.UserID)
	}
	return c.JSON(http.StatusOK, settings)
}

// OptOut withdraws the caller from federation entirely
func (h *SettingsHandler) OptOut(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	settings, err := h.users.OptOut(claims.UserID, claims.TenantID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, settings)
}

// FederationStatus reports which federated capabilities are currently
// usable for the caller's community
func (h *SettingsHandler) FederationStatus(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	summary, err := h.gateway.StatusSummary(claims.TenantID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"capabilities": summary})
}
