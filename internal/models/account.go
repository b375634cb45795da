package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Account holds the balance for exactly one user. The balance column carries a
// non-negative check so an overdraft can never become durable, whatever path
// tried to write it.
type Account struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	UserID    uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance   decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0;check:balance >= 0" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"-"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	// Accounts always open at zero; funding happens through the ledger.
	a.Balance = decimal.Zero
	return nil
}
