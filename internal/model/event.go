package model

import (
	"time"

	"gorm.io/gorm"
)

// Realtime event types
const (
	EventNewMessage        = "new_message"
	EventTyping            = "typing"
	EventMessageRead       = "message_read"
	EventTransaction       = "transaction"
	EventPartnershipUpdate = "partnership_update"
	EventNewMember         = "new_member"
	EventActivity          = "activity"
)

// RealtimeEvent is the durable-queue row backing the long-poll fallback
// transport. The row is written synchronously when an event is dispatched
// so nothing is lost if the push transport drops it.
type RealtimeEvent struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	EventID   string `gorm:"size:64;uniqueIndex" json:"event_id"`
	Type      string `gorm:"size:32" json:"type"`
	Channel   string `gorm:"size:255;index" json:"channel"`
	UserID    uint   `gorm:"index:idx_event_target" json:"user_id"`
	TenantID  uint   `gorm:"index:idx_event_target" json:"tenant_id"`
	Payload   Metadata `gorm:"type:jsonb" json:"payload"`
	Delivered bool   `gorm:"index;default:false" json:"delivered"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns an event id when none was supplied
func (e *RealtimeEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == "" {
		e.EventID = generateSecureID("evt_")
	}
	return nil
}
