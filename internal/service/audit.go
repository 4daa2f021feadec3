package service

import (
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"go.uber.org/zap"
)

// auditStore is what the audit service needs from persistence
type auditStore interface {
	Insert(e *model.AuditEntry) error
	Query(f model.AuditFilter) ([]model.AuditEntry, error)
	Stats(since time.Time) (*model.AuditStats, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// AuditService records federation actions. A failed write is logged and
// swallowed; auditing never blocks the action it describes.
type AuditService struct {
	store  auditStore
	logger *zap.Logger
}

func NewAuditService(store auditStore, logger *zap.Logger) *AuditService {
	return &AuditService{store: store, logger: logger}
}

// Log records an entry at info level
func (s *AuditService) Log(action string, sourceTenant, targetTenant, actor *uint, data model.Metadata) {
	s.LogLevel(action, model.AuditInfo, sourceTenant, targetTenant, actor, data)
}

// LogLevel records an entry at an explicit level. The category is derived
// from the action name.
func (s *AuditService) LogLevel(action, level string, sourceTenant, targetTenant, actor *uint, data model.Metadata) {
	entry := &model.AuditEntry{
		Action:         action,
		Category:       model.AuditCategory(action),
		Level:          level,
		SourceTenantID: sourceTenant,
		TargetTenantID: targetTenant,
		ActorUserID:    actor,
		Data:           data,
	}
	if err := s.store.Insert(entry); err != nil {
		s.logger.Error("audit write failed",
			zap.String("action", action),
			zap.Error(err))
	}
	if level == model.AuditCritical {
		s.logger.Error("critical federation event",
			zap.String("action", action),
			zap.Any("data", data))
	}
}

// Query returns entries matching the filter, newest first
func (s *AuditService) Query(f model.AuditFilter) ([]model.AuditEntry, error) {
	return s.store.Query(f)
}

// ByUser returns entries recorded for an actor
func (s *AuditService) ByUser(userID uint, limit, offset int) ([]model.AuditEntry, error) {
	return s.store.Query(model.AuditFilter{ActorUserID: userID, Limit: limit, Offset: offset})
}

// ByAction returns entries for one action name
func (s *AuditService) ByAction(action string, limit, offset int) ([]model.AuditEntry, error) {
	return s.store.Query(model.AuditFilter{Action: action, Limit: limit, Offset: offset})
}

// Stats aggregates entries since the given time (zero means all time)
func (s *AuditService) Stats(since time.Time) (*model.AuditStats, error) {
	return s.store.Stats(since)
}

// Cleanup removes entries older than the retention window
func (s *AuditService) Cleanup(retention time.Duration) (int64, error) {
	return s.store.DeleteOlderThan(time.Now().Add(-retention))
}

// uintPtr is a small helper for optional tenant and actor ids
func uintPtr(v uint) *uint { return &v }
