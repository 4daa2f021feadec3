package service

import (
	"context"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/prometheus"
	"go.uber.org/zap"
)

// transactionStore is what the transaction service needs from persistence
type transactionStore interface {
	ByID(id uint) (*model.FederatedTransaction, error)
	ByExternalID(partnerID uint, externalID string) (*model.FederatedTransaction, error)
	Balance(userID, tenantID uint) (float64, error)
	Transfer(t *model.FederatedTransaction) (bool, error)
	CreditExternal(t *model.FederatedTransaction) error
	MarkReversed(id uint) (bool, error)
	ClearReversed(id uint) error
	History(userID, tenantID uint, limit, offset int) ([]model.FederatedTransaction, error)
	ReversalOf(id uint) (*model.FederatedTransaction, error)
}

// transactionDispatcher is the realtime surface the transaction service uses
type transactionDispatcher interface {
	BroadcastTransaction(ctx context.Context, t *model.FederatedTransaction) bool
}

// TransactionService moves time credits between members of partnered
// tenants. Entries are immutable; undo is a compensating reversal.
type TransactionService struct {
	store    transactionStore
	gateway  *Gateway
	realtime transactionDispatcher
	audit    *AuditService
	logger   *zap.Logger
}

func NewTransactionService(store transactionStore, gateway *Gateway, rt transactionDispatcher, audit *AuditService, logger *zap.Logger) *TransactionService {
	return &TransactionService{store: store, gateway: gateway, realtime: rt, audit: audit, logger: logger}
}

// Create transfers time credits after the gateway allows it. The debit and
// credit are atomic; an insufficient balance leaves both sides untouched.
func (s *TransactionService) Create(ctx context.Context, senderUser, senderTenant, receiverUser, receiverTenant uint, amount float64, description string) (*model.FederatedTransaction, error) {
	if !model.ValidAmount(amount) {
		return nil, ErrInvalidAmount
	}
	balance, err := s.store.Balance(senderUser, senderTenant)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientBalance
	}

	decision, err := s.gateway.CanPerformTransaction(senderTenant, receiverTenant, receiverUser)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, ErrNotAuthorized
	}

	t := &model.FederatedTransaction{
		SenderUserID:     senderUser,
		SenderTenantID:   senderTenant,
		ReceiverUserID:   receiverUser,
		ReceiverTenantID: receiverTenant,
		Amount:           amount,
		Description:      description,
		Status:           model.TransactionCompleted,
	}
	ok, err := s.store.Transfer(t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInsufficientBalance
	}

	s.realtime.BroadcastTransaction(ctx, t)
	prometheus.RecordTransaction("transfer", amount)
	s.audit.Log("transaction_created", uintPtr(senderTenant), uintPtr(receiverTenant), uintPtr(senderUser), model.Metadata{
		"transaction_id": t.ID,
		"amount":         amount,
	})
	return t, nil
}

// Ingest records a transfer submitted by an external partner. The remote
// deployment already debited its sender, so only the local credit happens
// here. Re-delivery of the same external id returns the stored row.
func (s *TransactionService) Ingest(ctx context.Context, partner *model.ExternalPartner, externalTransactionID string, receiverUser uint, amount float64, description string) (*model.FederatedTransaction, error) {
	if !model.ValidAmount(amount) {
		return nil, ErrInvalidAmount
	}
	if externalTransactionID != "" {
		existing, err := s.store.ByExternalID(partner.ID, externalTransactionID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	t := &model.FederatedTransaction{
		ReceiverUserID:        receiverUser,
		ReceiverTenantID:      partner.TenantID,
		Amount:                amount,
		Description:           description,
		Status:                model.TransactionCompleted,
		ExternalPartnerID:     &partner.ID,
		ExternalTransactionID: externalTransactionID,
	}
	if err := s.store.CreditExternal(t); err != nil {
		return nil, err
	}

	s.realtime.BroadcastTransaction(ctx, t)
	prometheus.RecordTransaction("external_in", amount)
	s.audit.Log("external_transaction_received", nil, uintPtr(partner.TenantID), nil, model.Metadata{
		"transaction_id": t.ID,
		"partner":        partner.PlatformID,
		"amount":         amount,
	})
	return t, nil
}

// Reverse undoes a completed transaction with a compensating entry in the
// opposite direction. Only a tenant involved in the original may reverse,
// and only once.
func (s *TransactionService) Reverse(ctx context.Context, transactionID, actorTenant uint, actorUser *uint, reason string) (*model.FederatedTransaction, error) {
	orig, err := s.store.ByID(transactionID)
	if err != nil {
		return nil, err
	}
	if orig == nil {
		return nil, ErrTransactionNotFound
	}
	if orig.SenderTenantID != actorTenant && orig.ReceiverTenantID != actorTenant {
		return nil, ErrNotAuthorized
	}
	if orig.Status == model.TransactionReversed {
		return nil, ErrAlreadyReversed
	}

	// Claim the reversal first so two admins cannot both compensate
	ok, err := s.store.MarkReversed(orig.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyReversed
	}

	rev := &model.FederatedTransaction{
		SenderUserID:     orig.ReceiverUserID,
		SenderTenantID:   orig.ReceiverTenantID,
		ReceiverUserID:   orig.SenderUserID,
		ReceiverTenantID: orig.SenderTenantID,
		Amount:           orig.Amount,
		Description:      "Reversal: " + reason,
		Status:           model.TransactionCompleted,
		ReversalOf:       &orig.ID,
	}
	revOK, err := s.store.Transfer(rev)
	if err != nil {
		return nil, err
	}
	if !revOK {
		// The recipient already spent the credits. Release the claim so
		// the reversal can be retried once their balance recovers.
		if err := s.store.ClearReversed(orig.ID); err != nil {
			s.logger.Error("failed to release reversal claim",
				zap.Uint("transaction_id", orig.ID), zap.Error(err))
		}
		return nil, ErrInsufficientBalance
	}

	s.realtime.BroadcastTransaction(ctx, rev)
	prometheus.RecordTransaction("reversal", rev.Amount)
	s.audit.LogLevel("transaction_reversed", model.AuditWarning, uintPtr(actorTenant), uintPtr(rev.ReceiverTenantID), actorUser, model.Metadata{
		"transaction_id": orig.ID,
		"reversal_id":    rev.ID,
		"reason":         reason,
	})
	return rev, nil
}

// Get returns a transaction visible to the tenant
func (s *TransactionService) Get(id, tenantID uint) (*model.FederatedTransaction, error) {
	t, err := s.store.ByID(id)
	if err != nil {
		return nil, err
	}
	if t == nil || (t.SenderTenantID != tenantID && t.ReceiverTenantID != tenantID) {
		return nil, ErrTransactionNotFound
	}
	return t, nil
}

// History returns the user's sent and received transactions
func (s *TransactionService) History(userID, tenantID uint, limit, offset int) ([]model.FederatedTransaction, error) {
	return s.store.History(userID, tenantID, limit, offset)
}
