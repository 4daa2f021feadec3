package model

import "time"

// Message statuses
const (
	MessageUnread    = "unread"
	MessageRead      = "read"
	MessageDelivered = "delivered"
)

// FederatedMessage is a cross-tenant message. Rows are append-only except
// for the read flag. Messages relayed to or received from an off-platform
// partner carry the external ids for idempotent ingestion.
type FederatedMessage struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	SenderUserID   uint   `gorm:"index" json:"sender_user_id"`
	SenderTenantID uint   `json:"sender_tenant_id"`
	ReceiverUserID uint   `gorm:"index:idx_receiver" json:"receiver_user_id"`
	ReceiverTenantID uint `gorm:"index:idx_receiver" json:"receiver_tenant_id"`

	Subject string `gorm:"size:255" json:"subject"`
	Body    string `gorm:"size:10000" json:"body"`

	Status string     `gorm:"size:16;default:unread;index" json:"status"`
	ReadAt *time.Time `json:"read_at,omitempty"`

	// Set when the counterpart lives on an external partner deployment
	ExternalPartnerID *uint  `gorm:"uniqueIndex:idx_external_msg" json:"external_partner_id,omitempty"`
	ExternalMessageID string `gorm:"size:128;uniqueIndex:idx_external_msg" json:"external_message_id,omitempty"`
	ExternalSenderName string `gorm:"size:255" json:"external_sender_name,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsExternal reports whether the message crossed a deployment boundary
func (m *FederatedMessage) IsExternal() bool {
	return m.ExternalPartnerID != nil
}
