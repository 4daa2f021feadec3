package repository

import (
	"errors"
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MessageRepository persists federated messages
type MessageRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewMessageRepository(db *gorm.DB, logger *zap.Logger) *MessageRepository {
	return &MessageRepository{db: db, logger: logger}
}

// Create inserts a message row
func (r *MessageRepository) Create(m *model.FederatedMessage) error {
	return r.db.Create(m).Error
}

// ByID returns the message or nil when absent
func (r *MessageRepository) ByID(id uint) (*model.FederatedMessage, error) {
	var m model.FederatedMessage
	if err := r.db.First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// ByExternalID returns a previously ingested partner message, for idempotent
// re-delivery, or nil when the id is unseen
func (r *MessageRepository) ByExternalID(partnerID uint, externalID string) (*model.FederatedMessage, error) {
	var m model.FederatedMessage
	err := r.db.Where("external_partner_id = ? AND external_message_id = ?", partnerID, externalID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// Inbox returns messages received by the user, newest first
func (r *MessageRepository) Inbox(userID, tenantID uint, limit, offset int) ([]model.FederatedMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []model.FederatedMessage
	err := r.db.Where("receiver_user_id = ? AND receiver_tenant_id = ?", userID, tenantID).
		Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error
	return out, err
}

// Thread returns the two-party conversation in chronological order
func (r *MessageRepository) Thread(userA, tenantA, userB, tenantB uint, limit int) ([]model.FederatedMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []model.FederatedMessage
	err := r.db.Where(
		"(sender_user_id = ? AND sender_tenant_id = ? AND receiver_user_id = ? AND receiver_tenant_id = ?)"+
			" OR (sender_user_id = ? AND sender_tenant_id = ? AND receiver_user_id = ? AND receiver_tenant_id = ?)",
		userA, tenantA, userB, tenantB,
		userB, tenantB, userA, tenantA,
	).Order("created_at ASC").Limit(limit).Find(&out).Error
	return out, err
}

// MarkRead flips one message to read if the user is its receiver. Returns
// false when the row was not theirs or already read.
func (r *MessageRepository) MarkRead(messageID, userID, tenantID uint) (bool, error) {
	now := time.Now()
	res := r.db.Model(&model.FederatedMessage{}).
		Where("id = ? AND receiver_user_id = ? AND receiver_tenant_id = ? AND status <> ?",
			messageID, userID, tenantID, model.MessageRead).
		Updates(map[string]interface{}{"status": model.MessageRead, "read_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkThreadRead flips every unread message from the counterpart to read,
// returning the number of rows touched
func (r *MessageRepository) MarkThreadRead(userID, tenantID, otherUserID, otherTenantID uint) (int64, error) {
	now := time.Now()
	res := r.db.Model(&model.FederatedMessage{}).
		Where("receiver_user_id = ? AND receiver_tenant_id = ? AND sender_user_id = ? AND sender_tenant_id = ? AND status <> ?",
			userID, tenantID, otherUserID, otherTenantID, model.MessageRead).
		Updates(map[string]interface{}{"status": model.MessageRead, "read_at": now})
	return res.RowsAffected, res.Error
}

// UnreadCount counts unread messages addressed to the user
func (r *MessageRepository) UnreadCount(userID, tenantID uint) (int64, error) {
	var n int64
	err := r.db.Model(&model.FederatedMessage{}).
		Where("receiver_user_id = ? AND receiver_tenant_id = ? AND status = ?",
			userID, tenantID, model.MessageUnread).
		Count(&n).Error
	return n, err
}
