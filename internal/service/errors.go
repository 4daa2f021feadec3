package service

import "errors"

// Sentinel errors shared across federation services. Handlers map these to
// HTTP statuses.
var (
	ErrFederationDisabled   = errors.New("federation is not enabled")
	ErrPartnershipNotFound  = errors.New("partnership not found")
	ErrPartnershipExists    = errors.New("partnership already exists")
	ErrInvalidState         = errors.New("partnership is not in a state that allows this transition")
	ErrNotInvolved          = errors.New("tenant is not part of this partnership")
	ErrSelfPartnership      = errors.New("a tenant cannot partner with itself")
	ErrInvalidLevel         = errors.New("federation level must be between 1 and 4")
	ErrNotAuthorized        = errors.New("operation not authorized")
	ErrInvalidAmount        = errors.New("amount must be between 0.01 and 100.00 hours")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrAlreadyReversed      = errors.New("transaction is already reversed")
	ErrMessageNotFound      = errors.New("message not found")
	ErrEmptyMessageBody     = errors.New("message body must not be empty")
	ErrMemberNotFound       = errors.New("member not found")
	ErrListingNotFound      = errors.New("listing not found")
	ErrPartnerNotFound      = errors.New("external partner not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")
)
