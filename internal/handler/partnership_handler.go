package handler

import (
	"net/http"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/middleware"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/realtime"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/service"
	"github.com/labstack/echo/v4"
)

// PartnershipHandler serves the tenant-facing partnership lifecycle routes
type PartnershipHandler struct {
	partnerships *service.PartnershipService
	realtime     *realtime.Dispatcher
}

func NewPartnershipHandler(partnerships *service.PartnershipService, rt *realtime.Dispatcher) *PartnershipHandler {
	return &PartnershipHandler{partnerships: partnerships, realtime: rt}
}

// notifyRequester pushes a partnership transition to the admin who opened
// the request, unless they are the one acting
func (h *PartnershipHandler) notifyRequester(c echo.Context, p *model.Partnership, actorUser uint) {
	if p.RequestedBy == actorUser {
		return
	}
	h.realtime.BroadcastPartnershipUpdate(c.Request().Context(), p.RequestedByTenant, p.RequestedBy, p)
}

type requestPartnershipPayload struct {
	PartnerTenantID uint   `json:"partner_tenant_id"`
	Level           int    `json:"level"`
	Notes           string `json:"notes"`
}

// Request creates a pending partnership request
func (h *PartnershipHandler) Request(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	var payload requestPartnershipPayload
	if err := c.Bind(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}
	if payload.Level == 0 {
		payload.Level = model.LevelDiscovery
	}

	p, err := h.partnerships.Request(claims.TenantID, payload.PartnerTenantID, payload.Level, claims.UserID, payload.Notes)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// List returns the tenant's partnerships, optionally filtered by status
func (h *PartnershipHandler) List(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	out, err := h.partnerships.ListForTenant(claims.TenantID, c.QueryParam("status"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"partnerships": out})
}

// PendingIncoming returns requests awaiting this tenant's decision
func (h *PartnershipHandler) PendingIncoming(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	out, err := h.partnerships.PendingIncoming(claims.TenantID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"partnerships": out})
}

// Outgoing returns this tenant's unanswered requests
func (h *PartnershipHandler) Outgoing(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	out, err := h.partnerships.Outgoing(claims.TenantID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"partnerships": out})
}

// CounterProposals returns counters awaiting this tenant's response
func (h *PartnershipHandler) CounterProposals(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	out, err := h.partnerships.CounterProposals(claims.TenantID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"partnerships": out})
}

// Get returns a single partnership
func (h *PartnershipHandler) Get(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid partnership id")
	}
	p, err := h.partnerships.Get(id, claims.TenantID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

type approvePayload struct {
	Permissions *model.PermissionPatch `json:"permissions,omitempty"`
}

// Approve activates a pending request, optionally narrowing the default
// permissions for its level
func (h *PartnershipHandler) Approve(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid partnership id")
	}
	var payload approvePayload
	_ = c.Bind(&payload)
	p, err := h.partnerships.Approve(id, claims.TenantID, claims.UserID, payload.Permissions)
	if err != nil {
		return serviceError(c, err)
	}
	h.notifyRequester(c, p, claims.UserID)
	return c.JSON(http.StatusOK, p)
}

type reasonPayload struct {
	Reason string `json:"reason"`
}

// Decline rejects a pending request
func (h *PartnershipHandler) Decline(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid partnership id")
	}
	var payload reasonPayload
	_ = c.Bind(&payload)
	p, err := h.partnerships.Decline(id, claims.TenantID, claims.UserID, payload.Reason)
	if err != nil {
		return serviceError(c, err)
	}
	h.notifyRequester(c, p, claims.UserID)
	return c.JSON(http.StatusOK, p)
}

type counterPayload struct {
	Level       int                    `json:"level"`
	Message     string                 `json:"message"`
	Permissions *model.PermissionPatch `json:"permissions,omitempty"`
}

// Counter answers a pending request with different terms
func (h *PartnershipHandler) Counter(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid partnership id")
	}
	var payload counterPayload
	if err := c.Bind(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}
	p, err := h.partnerships.CounterPropose(id, claims.TenantID, claims.UserID, payload.Level, payload.Message, payload.Permissions)
	if err != nil {
		return serviceError(c, err)
	}
	h.notifyRequester(c, p, claims.UserID)
	return c.JSON(http.StatusOK, p)
}

// AcceptCounter accepts the countered terms
func (h *PartnershipHandler) AcceptCounter(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid partnership id")
	}
	p, err := h.partnerships.AcceptCounter(id, claims.TenantID, claims.UserID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// RejectCounter withdraws the request after a counter-proposal
func (h *PartnershipHandler) RejectCounter(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid partnership id")
	}
	p, err := h.partnerships.RejectCounter(id, claims.TenantID, claims.UserID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Suspend pauses an active partnership
func (h *PartnershipHandler) Suspend(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid partnership id")
	}
	var payload reasonPayload
	_ = c.Bind(&payload)
	p, err := h.partnerships.Suspend(id, claims.TenantID, claims.UserID, payload.Reason)
	if err != nil {
		return serviceError(c, err)
	}
	h.notifyRequester(c, p, claims.UserID)
	return c.JSON(http.StatusOK, p)
}

// Resume reactivates a suspended partnership
func (h *PartnershipHandler) Resume(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid partnership id")
	}
	p, err := h.partnerships.Resume(id, claims.TenantID, claims.UserID)
	if err != nil {
		return serviceError(c, err)
	}
	h.notifyRequester(c, p, claims.UserID)
	return c.JSON(http.StatusOK, p)
}

// Terminate ends a partnership permanently
func (h *PartnershipHandler) Terminate(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid partnership id")
	}
	var payload reasonPayload
	_ = c.Bind(&payload)
	p, err := h.partnerships.Terminate(id, claims.TenantID, claims.UserID, payload.Reason)
	if err != nil {
		return serviceError(c, err)
	}
	h.notifyRequester(c, p, claims.UserID)
	return c.JSON(http.StatusOK, p)
}

// UpdatePermissions patches an active partnership's capability flags
func (h *PartnershipHandler) UpdatePermissions(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid partnership id")
	}
	var patch model.PermissionPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(c, "invalid request body")
	}
	p, err := h.partnerships.UpdatePermissions(id, claims.TenantID, claims.UserID, patch)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Levels describes the federation levels and their default permissions
func (h *PartnershipHandler) Levels(c echo.Context) error {
	levels := make([]echo.Map, 0, 4)
	for l := model.LevelDiscovery; l <= model.LevelIntegrated; l++ {
		levels = append(levels, echo.Map{
			"level":       l,
			"name":        model.LevelName(l),
			"description": model.LevelDescription(l),
			"permissions": model.DefaultPermissions(l),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"levels": levels})
}

// Stats aggregates partnership counts across the platform
func (h *PartnershipHandler) Stats(c echo.Context) error {
	stats, err := h.partnerships.Stats()
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
