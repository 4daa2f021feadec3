package handler

import (
	"net/http"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/middleware"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/service"
	"github.com/labstack/echo/v4"
)

// PartnerAdminHandler manages the external partner registry for tenant
// administrators
type PartnerAdminHandler struct {
	partners *service.PartnerAdminService
}

func NewPartnerAdminHandler(partners *service.PartnerAdminService) *PartnerAdminHandler {
	return &PartnerAdminHandler{partners: partners}
}

// Register creates a partner record and returns its credentials. The
// plaintext credentials appear in this response only and cannot be
// retrieved again.
func (h *PartnerAdminHandler) Register(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	var in service.RegisterPartnerInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	if in.Name == "" || in.BaseURL == "" {
		return badRequest(c, "name and base_url are required")
	}
	in.TenantID = claims.TenantID
	by := claims.UserID
	partner, creds, err := h.partners.Register(in, &by)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"partner":     partner,
		"credentials": creds,
		"warning":     "Store these credentials now. They will not be shown again.",
	})
}

func (h *PartnerAdminHandler) List(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	partners, err := h.partners.List(claims.TenantID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"partners": partners})
}

func (h *PartnerAdminHandler) Get(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid partner id")
	}
	partner, err := h.partners.Get(id, claims.TenantID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, partner)
}

// RotateCredentials mints a fresh API key and client secret, invalidating
// the old ones
func (h *PartnerAdminHandler) RotateCredentials(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid partner id")
	}
	by := claims.UserID
	creds, err := h.partners.RotateCredentials(id, claims.TenantID, &by)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"credentials": creds,
		"warning":     "Store these credentials now. They will not be shown again.",
	})
}

// TestConnection probes the partner's health endpoint with its stored
// credentials
func (h *PartnerAdminHandler) TestConnection(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid partner id")
	}
	result := h.partners.TestConnection(c.Request().Context(), id, claims.TenantID)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	return c.JSON(status, result)
}

type partnerStatusPayload struct {
	Status string `json:"status"`
}

func (h *PartnerAdminHandler) SetStatus(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid partner id")
	}
	var payload partnerStatusPayload
	if err := c.Bind(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}
	by := claims.UserID
	if err := h.partners.SetStatus(id, claims.TenantID, payload.Status, &by); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": payload.Status})
}

func (h *PartnerAdminHandler) Remove(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid partner id")
	}
	by := claims.UserID
	if err := h.partners.Remove(id, claims.TenantID, &by); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "removed"})
}
