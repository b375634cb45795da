package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TransferRequest describes one peer transfer. ReceiverReference may be an
// account ID, a username or an email; the resolver decides. IdempotencyKey
// is optional: a retried transfer carrying the same key returns the entry
// committed by the first attempt instead of applying again.
type TransferRequest struct {
	SenderAccountID   uint
	ReceiverReference string
	Amount            decimal.Decimal
	IdempotencyKey    string
}

// Config tunes the engine's retry behaviour on transient storage faults.
type Config struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// BalanceCache is the read cache in front of the account store. The engine
// invalidates it after every committed mutation.
type BalanceCache interface {
	GetBalance(ctx context.Context, accountID uint) (decimal.Decimal, error)
	SetBalance(ctx context.Context, accountID uint, balance decimal.Decimal) error
	InvalidateBalance(ctx context.Context, accountID uint) error
}

// NoopBalanceCache satisfies BalanceCache without caching anything.
type NoopBalanceCache struct{}

func (NoopBalanceCache) GetBalance(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	return decimal.Zero, ErrCacheDisabled
}

func (NoopBalanceCache) SetBalance(ctx context.Context, accountID uint, balance decimal.Decimal) error {
	return nil
}

func (NoopBalanceCache) InvalidateBalance(ctx context.Context, accountID uint) error {
	return nil
}
