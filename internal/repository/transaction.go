package repository

import (
	"errors"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TransactionRepository persists federated transactions and moves balances.
// Balance movement and the ledger insert happen inside one database
// transaction so a crash can never leave credits half-transferred.
type TransactionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewTransactionRepository(db *gorm.DB, logger *zap.Logger) *TransactionRepository {
	return &TransactionRepository{db: db, logger: logger}
}

// ByID returns the transaction or nil when absent
func (r *TransactionRepository) ByID(id uint) (*model.FederatedTransaction, error) {
	var t model.FederatedTransaction
	if err := r.db.First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// Balance returns the member's current time-credit balance. An unknown
// member reads as zero.
func (r *TransactionRepository) Balance(userID, tenantID uint) (float64, error) {
	var m model.Member
	err := r.db.Select("balance").
		Where("id = ? AND tenant_id = ?", userID, tenantID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return m.Balance, err
}

// Transfer debits the sender, credits the receiver and records the ledger
// row atomically. ok is false when the sender's balance was insufficient;
// the database state is untouched in that case.
//
// The debit is a conditional update so two concurrent transfers cannot both
// spend the same balance.
func (r *TransactionRepository) Transfer(t *model.FederatedTransaction) (ok bool, err error) {
	err = r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Member{}).
			Where("id = ? AND tenant_id = ? AND balance >= ?", t.SenderUserID, t.SenderTenantID, t.Amount).
			Update("balance", gorm.Expr("balance - ?", t.Amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errInsufficient
		}
		if err := tx.Model(&model.Member{}).
			Where("id = ? AND tenant_id = ?", t.ReceiverUserID, t.ReceiverTenantID).
			Update("balance", gorm.Expr("balance + ?", t.Amount)).Error; err != nil {
			return err
		}
		return tx.Create(t).Error
	})
	if errors.Is(err, errInsufficient) {
		return false, nil
	}
	return err == nil, err
}

// errInsufficient aborts the gorm transaction without surfacing to callers
var errInsufficient = errors.New("insufficient balance")

// MarkReversed flips a completed transaction to reversed. Returns false when
// the row was already reversed.
func (r *TransactionRepository) MarkReversed(id uint) (bool, error) {
	res := r.db.Model(&model.FederatedTransaction{}).
		Where("id = ? AND status = ?", id, model.TransactionCompleted).
		Update("status", model.TransactionReversed)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClearReversed releases a reversal claim after the compensating transfer
// could not be booked
func (r *TransactionRepository) ClearReversed(id uint) error {
	return r.db.Model(&model.FederatedTransaction{}).
		Where("id = ? AND status = ?", id, model.TransactionReversed).
		Update("status", model.TransactionCompleted).Error
}

// ByExternalID returns the transaction a partner already submitted under
// this external id, or nil
func (r *TransactionRepository) ByExternalID(partnerID uint, externalID string) (*model.FederatedTransaction, error) {
	var t model.FederatedTransaction
	err := r.db.Where("external_partner_id = ? AND external_transaction_id = ?", partnerID, externalID).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// CreditExternal credits a local receiver for a transfer whose sender lives
// on an external deployment. The remote side already debited its member, so
// only the credit and the ledger row happen here, atomically.
func (r *TransactionRepository) CreditExternal(t *model.FederatedTransaction) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Member{}).
			Where("id = ? AND tenant_id = ?", t.ReceiverUserID, t.ReceiverTenantID).
			Update("balance", gorm.Expr("balance + ?", t.Amount)).Error; err != nil {
			return err
		}
		return tx.Create(t).Error
	})
}

// History returns transactions the user sent or received, newest first
func (r *TransactionRepository) History(userID, tenantID uint, limit, offset int) ([]model.FederatedTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []model.FederatedTransaction
	err := r.db.Where(
		"(sender_user_id = ? AND sender_tenant_id = ?) OR (receiver_user_id = ? AND receiver_tenant_id = ?)",
		userID, tenantID, userID, tenantID,
	).Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error
	return out, err
}

// ReversalOf returns the compensating entry for a transaction, or nil
func (r *TransactionRepository) ReversalOf(id uint) (*model.FederatedTransaction, error) {
	var t model.FederatedTransaction
	err := r.db.Where("reversal_of = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
