package partnerclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
)

// TestConnection probes the partner's health endpoint
func (c *Client) TestConnection(ctx context.Context, partner *model.ExternalPartner) Result {
	return c.do(ctx, partner, http.MethodGet, "/health", nil)
}

// ListPartnerTimebanks fetches the timebanks the partner exposes
func (c *Client) ListPartnerTimebanks(ctx context.Context, partner *model.ExternalPartner) Result {
	return c.do(ctx, partner, http.MethodGet, "/timebanks", nil)
}

// SearchMembers runs a member search on the partner deployment
func (c *Client) SearchMembers(ctx context.Context, partner *model.ExternalPartner, f model.MemberSearchFilters) Result {
	q := url.Values{}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.ServiceReach != "" {
		q.Set("service_reach", f.ServiceReach)
	}
	for _, s := range f.Skills {
		q.Add("skill", s)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return c.do(ctx, partner, http.MethodGet, withQuery("/members/search", q), nil)
}

// SearchListings runs a listing search on the partner deployment
func (c *Client) SearchListings(ctx context.Context, partner *model.ExternalPartner, f model.ListingSearchFilters) Result {
	q := url.Values{}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.Type != "" {
		q.Set("type", f.Type)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return c.do(ctx, partner, http.MethodGet, withQuery("/listings/search", q), nil)
}

// GetMember fetches one member's federated profile from the partner
func (c *Client) GetMember(ctx context.Context, partner *model.ExternalPartner, memberID uint) Result {
	return c.do(ctx, partner, http.MethodGet, fmt.Sprintf("/members/%d", memberID), nil)
}

// GetListing fetches one listing from the partner
func (c *Client) GetListing(ctx context.Context, partner *model.ExternalPartner, listingID uint) Result {
	return c.do(ctx, partner, http.MethodGet, fmt.Sprintf("/listings/%d", listingID), nil)
}

// SendMessage delivers a message to a member on the partner deployment
func (c *Client) SendMessage(ctx context.Context, partner *model.ExternalPartner, msg *model.FederatedMessage) Result {
	return c.do(ctx, partner, http.MethodPost, "/messages", map[string]interface{}{
		"external_message_id": fmt.Sprintf("msg_%d", msg.ID),
		"sender_name":         msg.ExternalSenderName,
		"receiver_user_id":    msg.ReceiverUserID,
		"subject":             msg.Subject,
		"body":                msg.Body,
	})
}

// CreateTransaction records a time-credit transfer on the partner deployment
func (c *Client) CreateTransaction(ctx context.Context, partner *model.ExternalPartner, t *model.FederatedTransaction) Result {
	return c.do(ctx, partner, http.MethodPost, "/transactions", map[string]interface{}{
		"external_transaction_id": fmt.Sprintf("txn_%d", t.ID),
		"sender_user_id":          t.SenderUserID,
		"receiver_user_id":        t.ReceiverUserID,
		"amount":                  t.Amount,
		"description":             t.Description,
	})
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
