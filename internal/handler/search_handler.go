package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/middleware"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/realtime"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/service"
	"github.com/labstack/echo/v4"
)

// SearchHandler serves federated member and listing discovery
type SearchHandler struct {
	search   *service.SearchService
	gateway  *service.Gateway
	audit    *service.AuditService
	realtime *realtime.Dispatcher
}

func NewSearchHandler(search *service.SearchService, gateway *service.Gateway, audit *service.AuditService, rt *realtime.Dispatcher) *SearchHandler {
	return &SearchHandler{search: search, gateway: gateway, audit: audit, realtime: rt}
}

func (h *SearchHandler) Members(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	f := model.MemberSearchFilters{
		Query:        c.QueryParam("q"),
		ServiceReach: c.QueryParam("service_reach"),
		SortBy:       c.QueryParam("sort_by"),
		Limit:        queryInt(c, "limit", 0),
		Offset:       queryInt(c, "offset", 0),
	}
	if skills := c.QueryParam("skills"); skills != "" {
		for _, s := range strings.Split(skills, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.Skills = append(f.Skills, s)
			}
		}
	}
	f.Latitude = queryFloat(c, "latitude")
	f.Longitude = queryFloat(c, "longitude")
	f.RadiusKm = queryFloat(c, "radius_km")
	f.MessagingEnabled = queryBool(c, "messaging_enabled")
	f.TransactionsEnabled = queryBool(c, "transactions_enabled")

	out, err := h.search.SearchMembers(c.Request().Context(), claims.TenantID, f)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *SearchHandler) Listings(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	f := model.ListingSearchFilters{
		Query:    c.QueryParam("q"),
		Type:     c.QueryParam("type"),
		Category: c.QueryParam("category"),
		Limit:    queryInt(c, "limit", 0),
		Offset:   queryInt(c, "offset", 0),
	}
	out, err := h.search.SearchListings(c.Request().Context(), claims.TenantID, f)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Profile returns a federated member profile, subject to the authorization
// gateway and the member's own visibility settings
func (h *SearchHandler) Profile(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	userID, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid member id")
	}
	tenantID := queryUint(c, "tenant_id", claims.TenantID)

	decision, err := h.gateway.CanViewProfile(claims.TenantID, tenantID, userID)
	if err != nil {
		return serviceError(c, err)
	}
	if !decision.Allowed {
		return c.JSON(http.StatusForbidden, echo.Map{"error": *decision.Reason})
	}
	view, err := h.search.GetProfile(userID, tenantID)
	if err != nil {
		return serviceError(c, err)
	}

	h.audit.Log("profile_viewed", uintPtr(claims.TenantID), uintPtr(tenantID), uintPtr(claims.UserID), model.Metadata{
		"viewed_user_id": userID,
	})
	if claims.TenantID != tenantID {
		h.realtime.BroadcastActivityEvent(c.Request().Context(), tenantID, userID, "profile_viewed", model.Metadata{
			"viewer_tenant_id": claims.TenantID,
		})
	}
	return c.JSON(http.StatusOK, view)
}

// Listing returns one listing, gated on the owning tenant's partnership
func (h *SearchHandler) Listing(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	listing, err := h.search.GetListing(id)
	if err != nil {
		return serviceError(c, err)
	}
	decision, err := h.gateway.CanViewListing(claims.TenantID, listing.TenantID)
	if err != nil {
		return serviceError(c, err)
	}
	if !decision.Allowed {
		return c.JSON(http.StatusForbidden, echo.Map{"error": *decision.Reason})
	}
	return c.JSON(http.StatusOK, listing)
}

func queryFloat(c echo.Context, name string) *float64 {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

func queryBool(c echo.Context, name string) *bool {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}
