package repository

import (
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditRepository persists audit entries. Entries are append-only; the only
// mutation is retention cleanup.
type AuditRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewAuditRepository(db *gorm.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// Insert appends an entry
func (r *AuditRepository) Insert(e *model.AuditEntry) error {
	return r.db.Create(e).Error
}

// Query returns entries matching the filter, newest first
func (r *AuditRepository) Query(f model.AuditFilter) ([]model.AuditEntry, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	q := r.db.Model(&model.AuditEntry{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Level != "" {
		q = q.Where("level = ?", f.Level)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.SourceTenantID != 0 {
		q = q.Where("source_tenant_id = ?", f.SourceTenantID)
	}
	if f.TargetTenantID != 0 {
		q = q.Where("target_tenant_id = ?", f.TargetTenantID)
	}
	if f.ActorUserID != 0 {
		q = q.Where("actor_user_id = ?", f.ActorUserID)
	}
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("created_at <= ?", f.To)
	}

	var out []model.AuditEntry
	err := q.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&out).Error
	return out, err
}

// Stats aggregates entry counts by level and category
func (r *AuditRepository) Stats(since time.Time) (*model.AuditStats, error) {
	stats := &model.AuditStats{
		ByLevel:    map[string]int64{},
		ByCategory: map[string]int64{},
	}

	type row struct {
		Key string
		N   int64
	}

	base := r.db.Model(&model.AuditEntry{})
	if !since.IsZero() {
		base = base.Where("created_at >= ?", since)
	}

	var levels []row
	if err := base.Session(&gorm.Session{}).
		Select("level as key, count(*) as n").Group("level").Scan(&levels).Error; err != nil {
		return nil, err
	}
	for _, rw := range levels {
		stats.ByLevel[rw.Key] = rw.N
		stats.Total += rw.N
	}

	var categories []row
	if err := base.Session(&gorm.Session{}).
		Select("category as key, count(*) as n").Group("category").Scan(&categories).Error; err != nil {
		return nil, err
	}
	for _, rw := range categories {
		stats.ByCategory[rw.Key] = rw.N
	}
	return stats, nil
}

// DeleteOlderThan removes entries past the retention cutoff, returning the
// number of rows removed
func (r *AuditRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res := r.db.Where("created_at < ?", cutoff).Delete(&model.AuditEntry{})
	return res.RowsAffected, res.Error
}
