package ledger

import (
	"context"

	"github.com/mutalechilando/DigitalWalletBackend/internal/models"

	"github.com/shopspring/decimal"
)

// Resolver locates the receiver account for a transfer reference. Implemented
// by the identity service.
type Resolver interface {
	Resolve(ctx context.Context, reference string) (*models.Account, error)
}

// Service is the transfer engine contract. All amounts are positive decimals
// with at most two decimal places; the returned entry is the committed audit
// record for the operation.
type Service interface {
	Deposit(ctx context.Context, accountID uint, amount decimal.Decimal) (*models.LedgerEntry, error)
	Withdraw(ctx context.Context, accountID uint, amount decimal.Decimal) (*models.LedgerEntry, error)
	Transfer(ctx context.Context, req TransferRequest) (*models.LedgerEntry, error)
	GetBalance(ctx context.Context, accountID uint) (decimal.Decimal, error)
	AccountForUser(ctx context.Context, userID uint) (*models.Account, error)
}
