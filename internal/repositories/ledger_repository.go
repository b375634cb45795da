// Package repositories provides the data access layer.
// It owns every read and write against the accounts and ledger_entries
// relations; services never touch gorm directly.
package repositories

import (
	"context"
	"errors"

	"github.com/mutalechilando/DigitalWalletBackend/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrDuplicateEntry    = errors.New("duplicate ledger entry")
	ErrEntryNotFound     = errors.New("ledger entry not found")
	ErrDuplicateAccount  = errors.New("account already exists")
)

// LedgerRepository is the storage contract for accounts and ledger entries.
//
// ApplyDelta is the sole balance mutation primitive. Inside
// ExecuteInTransaction it takes a row lock on the account, so a concurrent
// unit touching the same account blocks until this one commits or rolls
// back. Ledger entries are append-only: there is no update or delete.
type LedgerRepository interface {
	CreateAccount(account *models.Account) error
	GetAccountByID(id uint) (*models.Account, error)
	GetAccountByUserID(userID uint) (*models.Account, error)

	// ApplyDelta adds delta (which may be negative) to the account balance
	// and returns the new balance. A delta that would drive the balance
	// below zero fails with ErrInsufficientFunds and leaves the row
	// untouched.
	ApplyDelta(accountID uint, delta decimal.Decimal) (decimal.Decimal, error)

	// AppendEntry inserts an immutable ledger entry. A reused idempotency
	// key fails with ErrDuplicateEntry.
	AppendEntry(entry *models.LedgerEntry) error
	GetEntryByIdempotencyKey(key string) (*models.LedgerEntry, error)

	// EntriesForAccount returns committed entries touching the account,
	// most recent first.
	EntriesForAccount(ctx context.Context, accountID uint, limit, offset int) ([]models.LedgerEntry, error)

	// ExecuteInTransaction runs fn inside one atomic unit. Everything fn
	// does through the repository it receives commits together or not at
	// all.
	ExecuteInTransaction(fn func(LedgerRepository) error) error
}
