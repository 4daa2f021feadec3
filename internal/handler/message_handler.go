package handler

import (
	"net/http"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/middleware"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/realtime"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/service"
	"github.com/labstack/echo/v4"
)

// MessageHandler serves the user-facing federated messaging routes
type MessageHandler struct {
	messages *service.MessageService
	realtime *realtime.Dispatcher
}

func NewMessageHandler(messages *service.MessageService, rt *realtime.Dispatcher) *MessageHandler {
	return &MessageHandler{messages: messages, realtime: rt}
}

type sendMessagePayload struct {
	ReceiverUserID   uint   `json:"receiver_user_id"`
	ReceiverTenantID uint   `json:"receiver_tenant_id"`
	Subject          string `json:"subject"`
	Body             string `json:"body"`
	// Set to route the message to an external partner deployment instead
	ExternalPartnerID uint   `json:"external_partner_id,omitempty"`
	SenderName        string `json:"sender_name,omitempty"`
}

// Send delivers a message to a member of a partnered tenant or an external
// partner deployment
func (h *MessageHandler) Send(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	var payload sendMessagePayload
	if err := c.Bind(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	ctx := c.Request().Context()
	if payload.ExternalPartnerID != 0 {
		msg, err := h.messages.SendExternal(ctx, claims.UserID, claims.TenantID,
			payload.ExternalPartnerID, payload.ReceiverUserID, payload.Subject, payload.Body, payload.SenderName)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(http.StatusCreated, msg)
	}

	msg, err := h.messages.Send(ctx, claims.UserID, claims.TenantID,
		payload.ReceiverUserID, payload.ReceiverTenantID, payload.Subject, payload.Body)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// Inbox returns the caller's received messages
func (h *MessageHandler) Inbox(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	out, err := h.messages.Inbox(claims.UserID, claims.TenantID,
		queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		return serviceError(c, err)
	}
	unread, _ := h.messages.UnreadCount(claims.UserID, claims.TenantID)
	return c.JSON(http.StatusOK, echo.Map{"messages": out, "unread_count": unread})
}

// Thread returns the conversation with one counterpart
func (h *MessageHandler) Thread(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	otherUser := queryUint(c, "user_id", 0)
	otherTenant := queryUint(c, "tenant_id", 0)
	if otherUser == 0 || otherTenant == 0 {
		return badRequest(c, "user_id and tenant_id are required")
	}
	out, err := h.messages.Thread(claims.UserID, claims.TenantID, otherUser, otherTenant,
		queryInt(c, "limit", 100))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": out})
}

// MarkRead flips one received message to read
func (h *MessageHandler) MarkRead(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid message id")
	}
	if err := h.messages.MarkRead(c.Request().Context(), id, claims.UserID, claims.TenantID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "read"})
}

// MarkThreadRead flips a whole conversation to read
func (h *MessageHandler) MarkThreadRead(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	otherUser := queryUint(c, "user_id", 0)
	otherTenant := queryUint(c, "tenant_id", 0)
	if otherUser == 0 || otherTenant == 0 {
		return badRequest(c, "user_id and tenant_id are required")
	}
	n, err := h.messages.MarkThreadRead(claims.UserID, claims.TenantID, otherUser, otherTenant)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"marked": n})
}

// UnreadCount returns the caller's unread message count
func (h *MessageHandler) UnreadCount(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	n, err := h.messages.UnreadCount(claims.UserID, claims.TenantID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"unread_count": n})
}

type typingPayload struct {
	ReceiverUserID   uint `json:"receiver_user_id"`
	ReceiverTenantID uint `json:"receiver_tenant_id"`
	Typing           bool `json:"typing"`
}

// Typing signals typing activity to the conversation counterpart
func (h *MessageHandler) Typing(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	var payload typingPayload
	if err := c.Bind(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}
	delivered := h.realtime.BroadcastTyping(c.Request().Context(),
		claims.TenantID, claims.UserID, payload.ReceiverTenantID, payload.ReceiverUserID, payload.Typing)
	return c.JSON(http.StatusOK, echo.Map{"delivered": delivered})
}
