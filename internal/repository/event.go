package repository

import (
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventRepository is the durable queue behind the realtime dispatcher
type EventRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewEventRepository(db *gorm.DB, logger *zap.Logger) *EventRepository {
	return &EventRepository{db: db, logger: logger}
}

// Append stores an event for later polling
func (r *EventRepository) Append(e *model.RealtimeEvent) error {
	return r.db.Create(e).Error
}

// PendingAfter returns undelivered events for a user past the given row
// id, oldest first. Zero afterID means from the beginning.
func (r *EventRepository) PendingAfter(userID, tenantID, afterID uint, limit int) ([]model.RealtimeEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []model.RealtimeEvent
	err := r.db.Where("user_id = ? AND tenant_id = ? AND delivered = ? AND id > ?",
		userID, tenantID, false, afterID).
		Order("id ASC").Limit(limit).Find(&out).Error
	return out, err
}

// MarkDelivered flips the given event ids to delivered for the user
func (r *EventRepository) MarkDelivered(userID, tenantID uint, eventIDs []string) (int64, error) {
	if len(eventIDs) == 0 {
		return 0, nil
	}
	res := r.db.Model(&model.RealtimeEvent{}).
		Where("user_id = ? AND tenant_id = ? AND event_id IN ?", userID, tenantID, eventIDs).
		Update("delivered", true)
	return res.RowsAffected, res.Error
}

// DeleteOlderThan removes events past the retention cutoff
func (r *EventRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res := r.db.Where("created_at < ?", cutoff).Delete(&model.RealtimeEvent{})
	return res.RowsAffected, res.Error
}
