package service

import (
	"context"
	"strings"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/partnerclient"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/prometheus"
	"go.uber.org/zap"
)

// messageStore is what the message service needs from persistence
type messageStore interface {
	Create(m *model.FederatedMessage) error
	ByID(id uint) (*model.FederatedMessage, error)
	ByExternalID(partnerID uint, externalID string) (*model.FederatedMessage, error)
	Inbox(userID, tenantID uint, limit, offset int) ([]model.FederatedMessage, error)
	Thread(userA, tenantA, userB, tenantB uint, limit int) ([]model.FederatedMessage, error)
	MarkRead(messageID, userID, tenantID uint) (bool, error)
	MarkThreadRead(userID, tenantID, otherUserID, otherTenantID uint) (int64, error)
	UnreadCount(userID, tenantID uint) (int64, error)
}

// messageDispatcher is the realtime surface the message service uses
type messageDispatcher interface {
	BroadcastNewMessage(ctx context.Context, msg *model.FederatedMessage, unreadCount int64) bool
	BroadcastMessageRead(ctx context.Context, msg *model.FederatedMessage) bool
}

// partnerRelay delivers messages to external partner deployments
type partnerRelay interface {
	SendMessage(ctx context.Context, partner *model.ExternalPartner, msg *model.FederatedMessage) partnerclient.Result
}

// MessageService moves messages between members of partnered tenants and
// relays them to or from external partner deployments.
type MessageService struct {
	store    messageStore
	gateway  *Gateway
	realtime messageDispatcher
	relay    partnerRelay
	partners *PartnerAdminService
	audit    *AuditService
	logger   *zap.Logger
}

func NewMessageService(store messageStore, gateway *Gateway, rt messageDispatcher, relay partnerRelay, partners *PartnerAdminService, audit *AuditService, logger *zap.Logger) *MessageService {
	return &MessageService{store: store, gateway: gateway, realtime: rt, relay: relay, partners: partners, audit: audit, logger: logger}
}

// Send delivers a message from one member to another after the gateway
// allows it
func (s *MessageService) Send(ctx context.Context, senderUser, senderTenant, receiverUser, receiverTenant uint, subject, body string) (*model.FederatedMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessageBody
	}

	decision, err := s.gateway.CanSendMessage(senderTenant, receiverTenant, receiverUser)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		s.audit.LogLevel("message_blocked", model.AuditWarning, uintPtr(senderTenant), uintPtr(receiverTenant), uintPtr(senderUser), model.Metadata{
			"reason": *decision.Reason,
		})
		return nil, ErrNotAuthorized
	}

	msg := &model.FederatedMessage{
		SenderUserID:     senderUser,
		SenderTenantID:   senderTenant,
		ReceiverUserID:   receiverUser,
		ReceiverTenantID: receiverTenant,
		Subject:          subject,
		Body:             body,
		Status:           model.MessageUnread,
	}
	if err := s.store.Create(msg); err != nil {
		return nil, err
	}

	unread, err := s.store.UnreadCount(receiverUser, receiverTenant)
	if err != nil {
		s.logger.Warn("unread count unavailable", zap.Error(err))
	}
	s.realtime.BroadcastNewMessage(ctx, msg, unread)

	prometheus.RecordMessageSent("local")
	s.audit.Log("message_sent", uintPtr(senderTenant), uintPtr(receiverTenant), uintPtr(senderUser), model.Metadata{
		"message_id": msg.ID,
	})
	return msg, nil
}

// SendExternal delivers a message to a member on an external partner
// deployment. The local row is stored first so a relay failure is visible
// and retryable.
func (s *MessageService) SendExternal(ctx context.Context, senderUser, senderTenant uint, partnerID uint, receiverUser uint, subject, body, senderName string) (*model.FederatedMessage, error) {
	partner, err := s.partners.Get(partnerID, senderTenant)
	if err != nil {
		return nil, err
	}

	msg := &model.FederatedMessage{
		SenderUserID:       senderUser,
		SenderTenantID:     senderTenant,
		ReceiverUserID:     receiverUser,
		ReceiverTenantID:   partner.TenantID,
		Subject:            subject,
		Body:               strings.TrimSpace(body),
		Status:             model.MessageUnread,
		ExternalPartnerID:  &partner.ID,
		ExternalSenderName: senderName,
	}
	if msg.Body == "" {
		return nil, ErrEmptyMessageBody
	}
	if err := s.store.Create(msg); err != nil {
		return nil, err
	}

	res := s.relay.SendMessage(ctx, partner, msg)
	if !res.Success {
		s.logger.Warn("external message relay failed",
			zap.String("partner", partner.PlatformID),
			zap.Uint("message_id", msg.ID),
			zap.String("error", res.Error))
	} else {
		msg.Status = model.MessageDelivered
	}
	prometheus.RecordMessageSent("external_out")
	s.audit.Log("external_message_sent", uintPtr(senderTenant), uintPtr(partner.TenantID), uintPtr(senderUser), model.Metadata{
		"message_id": msg.ID,
		"partner":    partner.PlatformID,
		"delivered":  res.Success,
	})
	return msg, nil
}

// Ingest records a message received from an external partner. Re-delivery
// of the same external id returns the already stored row.
func (s *MessageService) Ingest(ctx context.Context, partner *model.ExternalPartner, externalMessageID, senderName string, receiverUser uint, subject, body string) (*model.FederatedMessage, error) {
	if externalMessageID != "" {
		existing, err := s.store.ByExternalID(partner.ID, externalMessageID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	msg := &model.FederatedMessage{
		SenderTenantID:     partner.TenantID,
		ReceiverUserID:     receiverUser,
		ReceiverTenantID:   partner.TenantID,
		Subject:            subject,
		Body:               strings.TrimSpace(body),
		Status:             model.MessageUnread,
		ExternalPartnerID:  &partner.ID,
		ExternalMessageID:  externalMessageID,
		ExternalSenderName: senderName,
	}
	if err := s.store.Create(msg); err != nil {
		return nil, err
	}

	unread, _ := s.store.UnreadCount(receiverUser, msg.ReceiverTenantID)
	s.realtime.BroadcastNewMessage(ctx, msg, unread)

	prometheus.RecordMessageSent("external_in")
	s.audit.Log("external_message_received", nil, uintPtr(partner.TenantID), nil, model.Metadata{
		"message_id": msg.ID,
		"partner":    partner.PlatformID,
	})
	return msg, nil
}

// Inbox returns the user's received messages, newest first
func (s *MessageService) Inbox(userID, tenantID uint, limit, offset int) ([]model.FederatedMessage, error) {
	return s.store.Inbox(userID, tenantID, limit, offset)
}

// Thread returns the conversation between the user and a counterpart
func (s *MessageService) Thread(userID, tenantID, otherUser, otherTenant uint, limit int) ([]model.FederatedMessage, error) {
	return s.store.Thread(userID, tenantID, otherUser, otherTenant, limit)
}

// MarkRead flips one received message to read and notifies the sender.
// Marking an already-read message is a no-op, not an error.
func (s *MessageService) MarkRead(ctx context.Context, messageID, userID, tenantID uint) error {
	msg, err := s.store.ByID(messageID)
	if err != nil {
		return err
	}
	if msg == nil || msg.ReceiverUserID != userID || msg.ReceiverTenantID != tenantID {
		return ErrMessageNotFound
	}
	ok, err := s.store.MarkRead(messageID, userID, tenantID)
	if err != nil {
		return err
	}
	if ok && !msg.IsExternal() {
		s.realtime.BroadcastMessageRead(ctx, msg)
	}
	return nil
}

// MarkThreadRead flips every unread message from a counterpart to read
func (s *MessageService) MarkThreadRead(userID, tenantID, otherUser, otherTenant uint) (int64, error) {
	return s.store.MarkThreadRead(userID, tenantID, otherUser, otherTenant)
}

// UnreadCount counts the user's unread messages
func (s *MessageService) UnreadCount(userID, tenantID uint) (int64, error) {
	return s.store.UnreadCount(userID, tenantID)
}
