package model

import (
	"math"
	"time"
)

// Transaction statuses
const (
	TransactionCompleted = "completed"
	TransactionReversed  = "reversed"
)

// Transaction amount bounds in hours
const (
	MinTransactionAmount = 0.0
	MaxTransactionAmount = 100.0
)

// FederatedTransaction is a cross-tenant time-credit transfer. Rows are
// immutable once recorded; reversals are compensating entries.
type FederatedTransaction struct {
	ID               uint    `gorm:"primaryKey" json:"id"`
	SenderUserID     uint    `gorm:"index" json:"sender_user_id"`
	SenderTenantID   uint    `json:"sender_tenant_id"`
	ReceiverUserID   uint    `gorm:"index" json:"receiver_user_id"`
	ReceiverTenantID uint    `json:"receiver_tenant_id"`
	Amount           float64 `json:"amount"`
	Description      string  `gorm:"size:500" json:"description"`
	Status           string  `gorm:"size:16;default:completed" json:"status"`

	// Set when this entry compensates an earlier one
	ReversalOf *uint `json:"reversal_of,omitempty"`

	// Set when the counterpart lives on an external partner deployment
	ExternalPartnerID     *uint  `json:"external_partner_id,omitempty"`
	ExternalTransactionID string `gorm:"size:128" json:"external_transaction_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ValidAmount reports whether an amount is inside (0, 100] at two-decimal
// granularity
func ValidAmount(amount float64) bool {
	if amount <= MinTransactionAmount || amount > MaxTransactionAmount {
		return false
	}
	cents := amount * 100
	return math.Abs(cents-math.Round(cents)) < 1e-9
}
