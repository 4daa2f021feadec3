package handler

import (
	"net/http"
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/middleware"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/service"
	"github.com/labstack/echo/v4"
)

// AdminHandler serves the superadmin control surface: system switches,
// emergency lockdown, the tenant whitelist and the audit log.
type AdminHandler struct {
	features     *service.FeatureService
	partnerships *service.PartnershipService
	audit        *service.AuditService
}

func NewAdminHandler(features *service.FeatureService, partnerships *service.PartnershipService, audit *service.AuditService) *AdminHandler {
	return &AdminHandler{features: features, partnerships: partnerships, audit: audit}
}

func (h *AdminHandler) SystemControls(c echo.Context) error {
	sc, err := h.features.SystemControls()
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, sc)
}

func (h *AdminHandler) UpdateSystemControls(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	var sc model.SystemControls
	if err := c.Bind(&sc); err != nil {
		return badRequest(c, "invalid request body")
	}
	by := claims.UserID
	if err := h.features.UpdateSystemControls(&sc, &by); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, sc)
}

type lockdownPayload struct {
	Reason string `json:"reason"`
}

// Lockdown disables all federation traffic immediately
func (h *AdminHandler) Lockdown(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	var payload lockdownPayload
	if err := c.Bind(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}
	if payload.Reason == "" {
		return badRequest(c, "reason is required")
	}
	by := claims.UserID
	if err := h.features.EmergencyLockdown(payload.Reason, &by); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "lockdown engaged"})
}

func (h *AdminHandler) LiftLockdown(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	by := claims.UserID
	if err := h.features.LiftLockdown(&by); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "lockdown lifted"})
}

func (h *AdminHandler) Whitelist(c echo.Context) error {
	entries, err := h.features.Whitelist()
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"whitelist": entries})
}

type whitelistPayload struct {
	TenantID uint   `json:"tenant_id"`
	Notes    string `json:"notes"`
}

func (h *AdminHandler) AddToWhitelist(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	var payload whitelistPayload
	if err := c.Bind(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}
	if payload.TenantID == 0 {
		return badRequest(c, "tenant_id is required")
	}
	if err := h.features.AddToWhitelist(payload.TenantID, claims.UserID, payload.Notes); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"status": "whitelisted"})
}

func (h *AdminHandler) RemoveFromWhitelist(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	tenantID, ok := paramUint(c, "tenant_id")
	if !ok {
		return badRequest(c, "invalid tenant id")
	}
	by := claims.UserID
	if err := h.features.RemoveFromWhitelist(tenantID, &by); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "removed"})
}

func (h *AdminHandler) TenantFeatures(c echo.Context) error {
	tenantID, ok := paramUint(c, "tenant_id")
	if !ok {
		return badRequest(c, "invalid tenant id")
	}
	features, err := h.features.TenantFeatures(tenantID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"features": features})
}

type tenantFeaturePayload struct {
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}

func (h *AdminHandler) SetTenantFeature(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	tenantID, ok := paramUint(c, "tenant_id")
	if !ok {
		return badRequest(c, "invalid tenant id")
	}
	var payload tenantFeaturePayload
	if err := c.Bind(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}
	if payload.Key == "" {
		return badRequest(c, "key is required")
	}
	by := claims.UserID
	if err := h.features.SetTenantFeature(tenantID, payload.Key, payload.Enabled, &by); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "updated"})
}

func (h *AdminHandler) Partnerships(c echo.Context) error {
	out, err := h.partnerships.All(c.QueryParam("status"), queryInt(c, "limit", 0))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"partnerships": out})
}

func (h *AdminHandler) PartnershipStats(c echo.Context) error {
	stats, err := h.partnerships.Stats()
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *AdminHandler) AuditLog(c echo.Context) error {
	f := model.AuditFilter{
		Category:       c.QueryParam("category"),
		Level:          c.QueryParam("level"),
		Action:         c.QueryParam("action"),
		SourceTenantID: queryUint(c, "source_tenant_id", 0),
		TargetTenantID: queryUint(c, "target_tenant_id", 0),
		ActorUserID:    queryUint(c, "actor_user_id", 0),
		Limit:          queryInt(c, "limit", 0),
		Offset:         queryInt(c, "offset", 0),
	}
	if raw := c.QueryParam("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			f.From = t
		}
	}
	if raw := c.QueryParam("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			f.To = t
		}
	}
	entries, err := h.audit.Query(f)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": entries})
}

func (h *AdminHandler) AuditStats(c echo.Context) error {
	days := queryInt(c, "days", 7)
	if days <= 0 || days > 365 {
		days = 7
	}
	stats, err := h.audit.Stats(time.Now().AddDate(0, 0, -days))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *AdminHandler) AuditCleanup(c echo.Context) error {
	days := queryInt(c, "retain_days", 90)
	if days < 7 {
		return badRequest(c, "retain_days must be at least 7")
	}
	n, err := h.audit.Cleanup(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}

// ClearCache drops the cached system controls so the next check re-reads
// the database
func (h *AdminHandler) ClearCache(c echo.Context) error {
	h.features.ClearCache()
	return c.JSON(http.StatusOK, echo.Map{"status": "cache cleared"})
}
