// Package history assembles the display-ready transaction history for an
// account. It only ever reads the ledger; direction and counterparty are
// derived per entry at query time.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/mutalechilando/DigitalWalletBackend/internal/repositories"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionSent     Direction = "Sent"
	DirectionReceived Direction = "Received"
)

// Counterparty placeholders for legs that do not resolve to a user.
const (
	CounterpartyExternal = "external"
	CounterpartySelf     = "Self"
	CounterpartyUnknown  = "unknown"
)

const defaultPageSize = 50

// Item is one row of an account's history. Amount keeps the stored sign so
// the caller can reconcile against the balance.
type Item struct {
	EntryID      uint            `json:"entry_id"`
	Amount       decimal.Decimal `json:"amount"`
	Timestamp    string          `json:"timestamp"`
	Direction    Direction       `json:"direction"`
	Counterparty string          `json:"counterparty"`
}

type Service interface {
	GetHistory(ctx context.Context, accountID uint, limit, offset int) ([]Item, error)
}

type service struct {
	entries repositories.LedgerRepository
	users   repositories.UserRepository
}

func NewService(entries repositories.LedgerRepository, users repositories.UserRepository) Service {
	if entries == nil {
		panic("ledger repository is required")
	}
	if users == nil {
		panic("user repository is required")
	}
	return &service{entries: entries, users: users}
}

func (s *service) GetHistory(ctx context.Context, accountID uint, limit, offset int) ([]Item, error) {
	if _, err := s.entries.GetAccountByID(accountID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}

	entries, err := s.entries.EntriesForAccount(ctx, accountID, limit, offset)
	if err != nil {
		return nil, err
	}

	// Counterparty names repeat across entries; memoize per request.
	names := make(map[uint]string)

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		direction := DirectionReceived
		counterparty := entry.SenderAccountID
		if entry.SenderAccountID != nil && *entry.SenderAccountID == accountID {
			direction = DirectionSent
			counterparty = entry.ReceiverAccountID
		}

		items = append(items, Item{
			EntryID:      entry.ID,
			Amount:       entry.Amount,
			Timestamp:    entry.CreatedAt.UTC().Format(time.RFC3339),
			Direction:    direction,
			Counterparty: s.counterpartyName(accountID, counterparty, names),
		})
	}
	return items, nil
}

// counterpartyName renders the other side of an entry. Nil legs are
// external; an identity that no longer resolves renders a neutral
// placeholder instead of failing the whole history.
func (s *service) counterpartyName(accountID uint, counterparty *uint, names map[uint]string) string {
	if counterparty == nil {
		return CounterpartyExternal
	}
	if *counterparty == accountID {
		return CounterpartySelf
	}
	if name, ok := names[*counterparty]; ok {
		return name
	}

	name := CounterpartyUnknown
	account, err := s.entries.GetAccountByID(*counterparty)
	if err == nil {
		user, err := s.users.GetByID(account.UserID)
		if err == nil {
			name = user.Username
		} else if !errors.Is(err, repositories.ErrUserNotFound) {
			name = CounterpartyUnknown
		}
	}
	names[*counterparty] = name
	return name
}
