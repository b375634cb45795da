// Package identity resolves transfer references to accounts. A reference may
// be a numeric account ID, a username or an email; resolution is a pure
// lookup with no side effects.
package identity

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/mutalechilando/DigitalWalletBackend/internal/models"
	"github.com/mutalechilando/DigitalWalletBackend/internal/repositories"
)

var (
	ErrNotFound           = errors.New("no account matches the reference")
	ErrAmbiguousReference = errors.New("reference matches more than one account")
)

// Service resolves a reference to exactly one account.
type Service interface {
	Resolve(ctx context.Context, reference string) (*models.Account, error)
}

type service struct {
	accounts repositories.LedgerRepository
	users    repositories.UserRepository
}

func NewService(accounts repositories.LedgerRepository, users repositories.UserRepository) Service {
	if accounts == nil {
		panic("ledger repository is required")
	}
	if users == nil {
		panic("user repository is required")
	}
	return &service{accounts: accounts, users: users}
}

// Resolve collects candidates across all three lookups and fails closed when
// the reference matches more than one distinct account: a transfer must never
// guess its receiver.
func (s *service) Resolve(ctx context.Context, reference string) (*models.Account, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrNotFound
	}

	candidates := make(map[uint]*models.Account)

	if id, err := strconv.ParseUint(reference, 10, 64); err == nil {
		if account, err := s.accounts.GetAccountByID(uint(id)); err == nil {
			candidates[account.ID] = account
		} else if !errors.Is(err, repositories.ErrAccountNotFound) {
			return nil, err
		}
	}

	if user, err := s.users.GetByUsername(reference); err == nil {
		if err := s.addUserAccount(candidates, user.ID); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, err
	}

	if user, err := s.users.GetByEmail(reference); err == nil {
		if err := s.addUserAccount(candidates, user.ID); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, err
	}

	switch len(candidates) {
	case 0:
		return nil, ErrNotFound
	case 1:
		for _, account := range candidates {
			return account, nil
		}
	}
	return nil, ErrAmbiguousReference
}

func (s *service) addUserAccount(candidates map[uint]*models.Account, userID uint) error {
	account, err := s.accounts.GetAccountByUserID(userID)
	if err != nil {
		// A user without an account cannot receive transfers; skip.
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return nil
		}
		return err
	}
	candidates[account.ID] = account
	return nil
}
