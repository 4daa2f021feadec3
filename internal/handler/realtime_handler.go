package handler

import (
	"net/http"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/middleware"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/realtime"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/service"
	"github.com/labstack/echo/v4"
)

// RealtimeHandler serves the event polling fallback and channel authorization
type RealtimeHandler struct {
	dispatcher *realtime.Dispatcher
	audit      *service.AuditService
}

func NewRealtimeHandler(dispatcher *realtime.Dispatcher, audit *service.AuditService) *RealtimeHandler {
	return &RealtimeHandler{dispatcher: dispatcher, audit: audit}
}

// Events returns queued events newer than the "after" cursor. Clients poll
// with the highest id they have seen.
func (h *RealtimeHandler) Events(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	after := queryUint(c, "after", 0)
	limit := queryInt(c, "limit", 50)
	events, err := h.dispatcher.GetPendingEvents(claims.UserID, claims.TenantID, after, limit)
	if err != nil {
		return serviceError(c, err)
	}
	var cursor uint
	if n := len(events); n > 0 {
		cursor = events[n-1].ID
	} else {
		cursor = after
	}
	return c.JSON(http.StatusOK, echo.Map{"events": events, "cursor": cursor})
}

type ackPayload struct {
	EventIDs []string `json:"event_ids"`
}

// Ack marks polled events as delivered so they drop out of later polls
func (h *RealtimeHandler) Ack(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	var payload ackPayload
	if err := c.Bind(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(payload.EventIDs) == 0 {
		return badRequest(c, "event_ids is required")
	}
	n, err := h.dispatcher.MarkEventsDelivered(claims.UserID, claims.TenantID, payload.EventIDs)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"acknowledged": n})
}

type channelAuthPayload struct {
	Channel string `json:"channel" form:"channel_name"`
}

// AuthorizeChannel validates a private channel subscription request
func (h *RealtimeHandler) AuthorizeChannel(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	var payload channelAuthPayload
	if err := c.Bind(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}
	if payload.Channel == "" {
		return badRequest(c, "channel is required")
	}
	if !realtime.AuthorizeChannel(payload.Channel, claims.UserID, claims.TenantID) {
		h.audit.LogLevel("realtime_channel_denied", "warning", &claims.TenantID, nil, &claims.UserID,
			map[string]interface{}{"channel": payload.Channel})
		return c.JSON(http.StatusForbidden, echo.Map{"error": "channel access denied"})
	}
	return c.JSON(http.StatusOK, echo.Map{"authorized": true, "channel": payload.Channel})
}

// Status reports how realtime events are being delivered to this client
func (h *RealtimeHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"available":         h.dispatcher.IsAvailable(),
		"connection_method": h.dispatcher.GetConnectionMethod(),
	})
}
