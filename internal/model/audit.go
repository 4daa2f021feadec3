package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Audit levels
const (
	AuditDebug    = "debug"
	AuditInfo     = "info"
	AuditWarning  = "warning"
	AuditCritical = "critical"
)

// Metadata is a schema-less key/value map persisted as JSON. It round-trips
// booleans, numbers, strings, nulls and nested maps.
type Metadata map[string]interface{}

// Value implements driver.Valuer
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return fmt.Errorf("cannot scan %T into Metadata", value)
}

// AuditEntry is an immutable record of a federation decision or action.
// Entries are never updated; retention is handled by an explicit cleanup.
type AuditEntry struct {
	ID             uint     `gorm:"primaryKey" json:"id"`
	Action         string   `gorm:"size:64;index" json:"action"`
	Category       string   `gorm:"size:32;index" json:"category"`
	Level          string   `gorm:"size:16;index;default:info" json:"level"`
	SourceTenantID *uint    `gorm:"index" json:"source_tenant_id,omitempty"`
	TargetTenantID *uint    `gorm:"index" json:"target_tenant_id,omitempty"`
	ActorUserID    *uint    `gorm:"index" json:"actor_user_id,omitempty"`
	Data           Metadata `gorm:"type:jsonb" json:"data,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// AuditCategory derives a category from an action name prefix
func AuditCategory(action string) string {
	switch {
	case strings.HasPrefix(action, "partnership"):
		return "partnership"
	case strings.HasPrefix(action, "emergency"), strings.HasPrefix(action, "system"):
		return "system"
	case strings.HasPrefix(action, "tenant"):
		return "tenant"
	case strings.Contains(action, "profile"):
		return "profile"
	case strings.Contains(action, "message"):
		return "messaging"
	case strings.Contains(action, "transaction"):
		return "transaction"
	case strings.Contains(action, "listing"):
		return "listing"
	case strings.Contains(action, "search"):
		return "search"
	case strings.Contains(action, "settings"), strings.HasPrefix(action, "user"):
		return "user"
	case strings.HasPrefix(action, "api"), strings.HasPrefix(action, "external"):
		return "api"
	}
	return "general"
}

// AuditStats aggregates audit entries for dashboards
type AuditStats struct {
	Total      int64            `json:"total"`
	ByLevel    map[string]int64 `json:"by_level"`
	ByCategory map[string]int64 `json:"by_category"`
}

// AuditFilter narrows audit queries; zero values mean "no filter"
type AuditFilter struct {
	Category       string
	Level          string
	Action         string
	SourceTenantID uint
	TargetTenantID uint
	ActorUserID    uint
	From           time.Time
	To             time.Time
	Limit          int
	Offset         int
}
