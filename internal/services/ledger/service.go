package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mutalechilando/DigitalWalletBackend/internal/models"
	"github.com/mutalechilando/DigitalWalletBackend/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 50 * time.Millisecond
)

type service struct {
	repo     repositories.LedgerRepository
	resolver Resolver
	cache    BalanceCache
	cfg      Config
}

// NewService creates the transfer engine.
func NewService(repo repositories.LedgerRepository, resolver Resolver, cache BalanceCache, cfg Config) Service {
	if repo == nil {
		panic("ledger repository is required")
	}
	if resolver == nil {
		panic("resolver is required")
	}
	if cache == nil {
		cache = NoopBalanceCache{}
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	return &service{
		repo:     repo,
		resolver: resolver,
		cache:    cache,
		cfg:      cfg,
	}
}

func (s *service) Deposit(ctx context.Context, accountID uint, amount decimal.Decimal) (*models.LedgerEntry, error) {
	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}

	var entry *models.LedgerEntry
	err := s.withRetry(ctx, func() error {
		return s.repo.ExecuteInTransaction(func(tx repositories.LedgerRepository) error {
			if _, err := tx.ApplyDelta(accountID, amount); err != nil {
				return err
			}
			e := &models.LedgerEntry{
				ReceiverAccountID: &accountID,
				Amount:            amount,
				Reference:         uuid.NewString(),
				CreatedAt:         time.Now().UTC(),
			}
			if err := tx.AppendEntry(e); err != nil {
				return err
			}
			entry = e
			return nil
		})
	})
	if err != nil {
		return nil, s.mapError(err)
	}

	s.invalidate(ctx, accountID)
	return entry, nil
}

func (s *service) Withdraw(ctx context.Context, accountID uint, amount decimal.Decimal) (*models.LedgerEntry, error) {
	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}

	var entry *models.LedgerEntry
	err := s.withRetry(ctx, func() error {
		return s.repo.ExecuteInTransaction(func(tx repositories.LedgerRepository) error {
			if _, err := tx.ApplyDelta(accountID, amount.Neg()); err != nil {
				return err
			}
			// Withdrawals store the negated amount so reconciliation can
			// sum every entry uniformly.
			e := &models.LedgerEntry{
				SenderAccountID: &accountID,
				Amount:          amount.Neg(),
				Reference:       uuid.NewString(),
				CreatedAt:       time.Now().UTC(),
			}
			if err := tx.AppendEntry(e); err != nil {
				return err
			}
			entry = e
			return nil
		})
	})
	if err != nil {
		return nil, s.mapError(err)
	}

	s.invalidate(ctx, accountID)
	return entry, nil
}

func (s *service) Transfer(ctx context.Context, req TransferRequest) (*models.LedgerEntry, error) {
	if !validAmount(req.Amount) {
		return nil, ErrInvalidAmount
	}

	receiver, err := s.resolver.Resolve(ctx, req.ReceiverReference)
	if err != nil {
		return nil, err
	}
	if receiver.ID == req.SenderAccountID {
		return nil, ErrSelfTransfer
	}

	senderID, receiverID := req.SenderAccountID, receiver.ID

	if req.IdempotencyKey != "" {
		if existing, err := s.repo.GetEntryByIdempotencyKey(req.IdempotencyKey); err == nil {
			return s.replayedEntry(existing, req, receiverID)
		}
	}

	var entry *models.LedgerEntry
	err = s.withRetry(ctx, func() error {
		return s.repo.ExecuteInTransaction(func(tx repositories.LedgerRepository) error {
			type step struct {
				accountID uint
				delta     decimal.Decimal
			}
			// Lock both rows in ascending account-ID order; two
			// opposite-direction transfers then always agree on lock
			// order and cannot deadlock.
			steps := []step{
				{senderID, req.Amount.Neg()},
				{receiverID, req.Amount},
			}
			if steps[1].accountID < steps[0].accountID {
				steps[0], steps[1] = steps[1], steps[0]
			}
			for _, st := range steps {
				if _, err := tx.ApplyDelta(st.accountID, st.delta); err != nil {
					return err
				}
			}

			e := &models.LedgerEntry{
				SenderAccountID:   &senderID,
				ReceiverAccountID: &receiverID,
				Amount:            req.Amount,
				Reference:         uuid.NewString(),
				CreatedAt:         time.Now().UTC(),
			}
			if req.IdempotencyKey != "" {
				key := req.IdempotencyKey
				e.IdempotencyKey = &key
			}
			if err := tx.AppendEntry(e); err != nil {
				return err
			}
			entry = e
			return nil
		})
	})
	if err != nil {
		// A concurrent retry with the same key won the race; its entry is
		// the committed result.
		if req.IdempotencyKey != "" && errors.Is(err, repositories.ErrDuplicateEntry) {
			if existing, lookupErr := s.repo.GetEntryByIdempotencyKey(req.IdempotencyKey); lookupErr == nil {
				return s.replayedEntry(existing, req, receiverID)
			}
		}
		return nil, s.mapError(err)
	}

	s.invalidate(ctx, senderID)
	s.invalidate(ctx, receiverID)
	return entry, nil
}

// replayedEntry returns the entry committed by an earlier attempt carrying
// the same idempotency key, after checking that the retry describes the same
// transfer. A key reused for a different sender, receiver or amount is a
// client bug, not a retry, and is rejected.
func (s *service) replayedEntry(existing *models.LedgerEntry, req TransferRequest, receiverID uint) (*models.LedgerEntry, error) {
	if existing.SenderAccountID == nil || *existing.SenderAccountID != req.SenderAccountID ||
		existing.ReceiverAccountID == nil || *existing.ReceiverAccountID != receiverID ||
		!existing.Amount.Equal(req.Amount) {
		return nil, ErrKeyReused
	}
	return existing, nil
}

func (s *service) GetBalance(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	if balance, err := s.cache.GetBalance(ctx, accountID); err == nil {
		return balance, nil
	}

	account, err := s.repo.GetAccountByID(accountID)
	if err != nil {
		return decimal.Zero, s.mapError(err)
	}

	if err := s.cache.SetBalance(ctx, accountID, account.Balance); err != nil {
		log.Printf("failed to cache balance for account %d: %v", accountID, err)
	}
	return account.Balance, nil
}

func (s *service) AccountForUser(ctx context.Context, userID uint) (*models.Account, error) {
	account, err := s.repo.GetAccountByUserID(userID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return account, nil
}

// withRetry re-runs op on transient storage faults, backing off linearly,
// until the attempt budget or the context runs out.
func (s *service) withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * s.cfg.RetryBackoff):
			}
		}
		err = op()
		if err == nil || !repositories.IsTransient(err) {
			return err
		}
		log.Printf("transient storage fault, attempt %d: %v", attempt+1, err)
	}
	return err
}

func (s *service) mapError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrAccountNotFound):
		return ErrAccountNotFound
	case errors.Is(err, repositories.ErrInsufficientFunds):
		return ErrInsufficientFunds
	case repositories.IsTransient(err):
		return fmt.Errorf("%w: %v", ErrTransientStorage, err)
	default:
		return err
	}
}

func (s *service) invalidate(ctx context.Context, accountID uint) {
	if err := s.cache.InvalidateBalance(ctx, accountID); err != nil {
		log.Printf("failed to invalidate balance cache for account %d: %v", accountID, err)
	}
}

// validAmount accepts positive amounts with at most two decimal places, the
// smallest currency granularity the ledger stores.
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}
