package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one immutable balance-affecting event. A nil sender or
// receiver marks the external side of a deposit or withdrawal.
//
// Sign convention: deposits and transfers store the positive amount,
// withdrawals store the negated amount. Summing the signed amounts
// attributable to an account therefore reproduces its balance.
type LedgerEntry struct {
	ID                uint            `gorm:"primarykey" json:"id"`
	SenderAccountID   *uint           `gorm:"index" json:"sender_account_id"`
	ReceiverAccountID *uint           `gorm:"index" json:"receiver_account_id"`
	Amount            decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	Reference         string          `gorm:"size:64;not null" json:"reference"`
	IdempotencyKey    *string         `gorm:"uniqueIndex;size:100" json:"-"`
	CreatedAt         time.Time       `json:"created_at"`
}

// IsExternalDeposit reports whether the entry records money entering from
// outside the ledger.
func (e *LedgerEntry) IsExternalDeposit() bool {
	return e.SenderAccountID == nil
}

// IsExternalWithdrawal reports whether the entry records money leaving the
// ledger.
func (e *LedgerEntry) IsExternalWithdrawal() bool {
	return e.ReceiverAccountID == nil
}
