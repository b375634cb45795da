package ledger

import "errors"

// Service errors
var (
	ErrInvalidAmount     = errors.New("amount must be positive with at most two decimal places")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSelfTransfer      = errors.New("cannot transfer to own account")
	ErrKeyReused         = errors.New("idempotency key already used for a different transfer")
	ErrTransientStorage  = errors.New("transient storage failure, retry the operation")
	ErrCacheDisabled     = errors.New("balance cache disabled")
)
