package handler

import (
	"net/http"
	"strings"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/middleware"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/repository"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/service"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// FederationAPIHandler is the inbound API served to external partner
// deployments. Every route runs behind partner authentication and a
// per-route scope check; results are restricted to the tenant that
// registered the calling partner.
type FederationAPIHandler struct {
	search       *service.SearchService
	messages     *service.MessageService
	transactions *service.TransactionService
	members      *repository.MemberRepository
	audit        *service.AuditService
}

func NewFederationAPIHandler(search *service.SearchService, messages *service.MessageService, transactions *service.TransactionService, members *repository.MemberRepository, audit *service.AuditService) *FederationAPIHandler {
	return &FederationAPIHandler{
		search:       search,
		messages:     messages,
		transactions: transactions,
		members:      members,
		audit:        audit,
	}
}

// Timebanks lists the communities on this deployment that opted into the
// federation directory
func (h *FederationAPIHandler) Timebanks(c echo.Context) error {
	tenants, err := h.members.DirectoryTenants()
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"timebanks": tenants})
}

// Members searches this deployment's opted-in members for a partner
func (h *FederationAPIHandler) Members(c echo.Context) error {
	partner := middleware.CurrentPartner(c)
	f := model.MemberSearchFilters{
		Query:        c.QueryParam("q"),
		ServiceReach: c.QueryParam("service_reach"),
		Limit:        queryInt(c, "limit", 0),
		Offset:       queryInt(c, "offset", 0),
	}
	if skill := c.QueryParam("skill"); skill != "" {
		f.Skills = []string{skill}
	}
	views, err := h.search.LocalMembers(partner.TenantID, f)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"members": views})
}

// Member returns one member's federated view
func (h *FederationAPIHandler) Member(c echo.Context) error {
	partner := middleware.CurrentPartner(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid member id")
	}
	view, err := h.search.GetProfile(id, partner.TenantID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Listings searches this deployment's listings for a partner
func (h *FederationAPIHandler) Listings(c echo.Context) error {
	partner := middleware.CurrentPartner(c)
	f := model.ListingSearchFilters{
		Query:    c.QueryParam("q"),
		Type:     c.QueryParam("type"),
		Category: c.QueryParam("category"),
		Limit:    queryInt(c, "limit", 0),
		Offset:   queryInt(c, "offset", 0),
	}
	listings, err := h.search.LocalListings(partner.TenantID, f)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"listings": listings})
}

// Listing returns one listing when it belongs to the partner's tenant
func (h *FederationAPIHandler) Listing(c echo.Context) error {
	partner := middleware.CurrentPartner(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	listing, err := h.search.GetListing(id)
	if err != nil {
		return serviceError(c, err)
	}
	if listing.TenantID != partner.TenantID {
		return serviceError(c, service.ErrListingNotFound)
	}
	return c.JSON(http.StatusOK, listing)
}

type inboundMessagePayload struct {
	ExternalMessageID string `json:"external_message_id"`
	ReceiverUserID    uint   `json:"receiver_user_id"`
	SenderName        string `json:"sender_name"`
	Subject           string `json:"subject"`
	Body              string `json:"body"`
}

// ReceiveMessage stores a message delivered by a partner. Redelivery of the
// same external id is idempotent.
func (h *FederationAPIHandler) ReceiveMessage(c echo.Context) error {
	partner := middleware.CurrentPartner(c)
	var payload inboundMessagePayload
	if err := c.Bind(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}
	if payload.ReceiverUserID == 0 || strings.TrimSpace(payload.Body) == "" {
		return badRequest(c, "receiver_user_id and body are required")
	}
	msg, err := h.messages.Ingest(c.Request().Context(), partner,
		payload.ExternalMessageID, payload.SenderName, payload.ReceiverUserID, payload.Subject, payload.Body)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": msg.ID, "external_message_id": msg.ExternalMessageID})
}

type inboundTransactionPayload struct {
	ExternalTransactionID string  `json:"external_transaction_id"`
	ReceiverUserID        uint    `json:"receiver_user_id"`
	Amount                float64 `json:"amount"`
	Description           string  `json:"description"`
}

// ReceiveTransaction credits a local member for a transfer initiated on the
// partner deployment
func (h *FederationAPIHandler) ReceiveTransaction(c echo.Context) error {
	partner := middleware.CurrentPartner(c)
	var payload inboundTransactionPayload
	if err := c.Bind(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}
	if payload.ReceiverUserID == 0 {
		return badRequest(c, "receiver_user_id is required")
	}
	t, err := h.transactions.Ingest(c.Request().Context(), partner,
		payload.ExternalTransactionID, payload.ReceiverUserID, payload.Amount, payload.Description)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": t.ID, "external_transaction_id": t.ExternalTransactionID})
}

// WebhookTest lets a partner confirm its credentials and signing setup.
// Reaching this handler means authentication already succeeded, so it
// reports back how the request was authenticated.
func (h *FederationAPIHandler) WebhookTest(c echo.Context) error {
	partner := middleware.CurrentPartner(c)
	method := "api_key"
	if c.Request().Header.Get("X-Federation-Signature") != "" {
		method = "hmac"
	} else if strings.HasPrefix(c.Request().Header.Get("Authorization"), "Bearer ") {
		method = "oauth2"
	}
	logger.FromEcho(c).Info("Partner webhook test",
		zap.String("platform_id", partner.PlatformID), zap.String("auth_method", method))
	h.audit.Log("api_webhook_test", nil, uintPtr(partner.TenantID), nil, model.Metadata{
		"partner":     partner.PlatformID,
		"auth_method": method,
	})
	return c.JSON(http.StatusOK, echo.Map{
		"status":      "ok",
		"platform_id": partner.PlatformID,
		"auth_method": method,
	})
}

func uintPtr(v uint) *uint { return &v }
