// Package memory provides an in-memory implementation of the repository
// interfaces. It backs the service test suites and keeps transaction
// semantics honest: every ExecuteInTransaction runs against a snapshot that
// only replaces the live state on success.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mutalechilando/DigitalWalletBackend/internal/models"
	"github.com/mutalechilando/DigitalWalletBackend/internal/repositories"

	"github.com/shopspring/decimal"
)

type state struct {
	accounts   map[uint]models.Account
	entries    []models.LedgerEntry
	entryByKey map[string]uint
	users      map[uint]models.User
	blacklist  map[string]time.Time

	nextAccountID uint
	nextEntryID   uint
	nextUserID    uint
}

func newState() *state {
	return &state{
		accounts:      make(map[uint]models.Account),
		entryByKey:    make(map[string]uint),
		users:         make(map[uint]models.User),
		blacklist:     make(map[string]time.Time),
		nextAccountID: 1,
		nextEntryID:   1,
		nextUserID:    1,
	}
}

func (st *state) clone() *state {
	c := &state{
		accounts:      make(map[uint]models.Account, len(st.accounts)),
		entries:       make([]models.LedgerEntry, len(st.entries)),
		entryByKey:    make(map[string]uint, len(st.entryByKey)),
		users:         make(map[uint]models.User, len(st.users)),
		blacklist:     make(map[string]time.Time, len(st.blacklist)),
		nextAccountID: st.nextAccountID,
		nextEntryID:   st.nextEntryID,
		nextUserID:    st.nextUserID,
	}
	for id, a := range st.accounts {
		c.accounts[id] = a
	}
	copy(c.entries, st.entries)
	for k, v := range st.entryByKey {
		c.entryByKey[k] = v
	}
	for id, u := range st.users {
		c.users[id] = u
	}
	for k, v := range st.blacklist {
		c.blacklist[k] = v
	}
	return c
}

// Store is a thread-safe in-memory ledger and user store.
type Store struct {
	mu        sync.Mutex
	st        *state
	appendErr error
}

func NewStore() *Store {
	return &Store{st: newState()}
}

// FailNextAppend injects err into the next AppendEntry call, inside or
// outside a transaction. Used to verify that a failed atomic unit leaves no
// partial state behind.
func (s *Store) FailNextAppend(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = err
}

// ops runs the repository operations against one state, either the live one
// (guarded by the Store mutex) or a transaction snapshot.
type ops struct {
	st    *state
	store *Store
}

func (o *ops) CreateAccount(account *models.Account) error {
	for _, a := range o.st.accounts {
		if a.UserID == account.UserID {
			return repositories.ErrDuplicateAccount
		}
	}
	account.ID = o.st.nextAccountID
	o.st.nextAccountID++
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	o.st.accounts[account.ID] = *account
	return nil
}

func (o *ops) GetAccountByID(id uint) (*models.Account, error) {
	a, ok := o.st.accounts[id]
	if !ok {
		return nil, repositories.ErrAccountNotFound
	}
	return &a, nil
}

func (o *ops) GetAccountByUserID(userID uint) (*models.Account, error) {
	for _, a := range o.st.accounts {
		if a.UserID == userID {
			account := a
			return &account, nil
		}
	}
	return nil, repositories.ErrAccountNotFound
}

func (o *ops) ApplyDelta(accountID uint, delta decimal.Decimal) (decimal.Decimal, error) {
	a, ok := o.st.accounts[accountID]
	if !ok {
		return decimal.Zero, repositories.ErrAccountNotFound
	}
	newBalance := a.Balance.Add(delta)
	if newBalance.IsNegative() {
		return decimal.Zero, repositories.ErrInsufficientFunds
	}
	a.Balance = newBalance
	a.UpdatedAt = time.Now().UTC()
	o.st.accounts[accountID] = a
	return newBalance, nil
}

func (o *ops) AppendEntry(entry *models.LedgerEntry) error {
	if err := o.store.appendErr; err != nil {
		o.store.appendErr = nil
		return err
	}
	if entry.IdempotencyKey != nil {
		if _, exists := o.st.entryByKey[*entry.IdempotencyKey]; exists {
			return repositories.ErrDuplicateEntry
		}
	}
	entry.ID = o.st.nextEntryID
	o.st.nextEntryID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	o.st.entries = append(o.st.entries, *entry)
	if entry.IdempotencyKey != nil {
		o.st.entryByKey[*entry.IdempotencyKey] = entry.ID
	}
	return nil
}

func (o *ops) GetEntryByIdempotencyKey(key string) (*models.LedgerEntry, error) {
	id, ok := o.st.entryByKey[key]
	if !ok {
		return nil, repositories.ErrEntryNotFound
	}
	for i := range o.st.entries {
		if o.st.entries[i].ID == id {
			e := o.st.entries[i]
			return &e, nil
		}
	}
	return nil, repositories.ErrEntryNotFound
}

func (o *ops) EntriesForAccount(_ context.Context, accountID uint, limit, offset int) ([]models.LedgerEntry, error) {
	var result []models.LedgerEntry
	for _, e := range o.st.entries {
		if (e.SenderAccountID != nil && *e.SenderAccountID == accountID) ||
			(e.ReceiverAccountID != nil && *e.ReceiverAccountID == accountID) {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if offset > len(result) {
		offset = len(result)
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (o *ops) ExecuteInTransaction(fn func(repositories.LedgerRepository) error) error {
	// Already inside a unit; nested calls join it.
	return fn(o)
}

var _ repositories.LedgerRepository = (*ops)(nil)

func (s *Store) CreateAccount(account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&ops{st: s.st, store: s}).CreateAccount(account)
}

func (s *Store) GetAccountByID(id uint) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&ops{st: s.st, store: s}).GetAccountByID(id)
}

func (s *Store) GetAccountByUserID(userID uint) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&ops{st: s.st, store: s}).GetAccountByUserID(userID)
}

func (s *Store) ApplyDelta(accountID uint, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&ops{st: s.st, store: s}).ApplyDelta(accountID, delta)
}

func (s *Store) AppendEntry(entry *models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&ops{st: s.st, store: s}).AppendEntry(entry)
}

func (s *Store) GetEntryByIdempotencyKey(key string) (*models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&ops{st: s.st, store: s}).GetEntryByIdempotencyKey(key)
}

func (s *Store) EntriesForAccount(ctx context.Context, accountID uint, limit, offset int) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&ops{st: s.st, store: s}).EntriesForAccount(ctx, accountID, limit, offset)
}

// ExecuteInTransaction serializes units against the whole store and applies
// fn to a snapshot. The snapshot replaces the live state only when fn
// succeeds, so a failing unit is invisible.
func (s *Store) ExecuteInTransaction(fn func(repositories.LedgerRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(&ops{st: snapshot, store: s}); err != nil {
		return err
	}
	s.st = snapshot
	return nil
}

var _ repositories.LedgerRepository = (*Store)(nil)

// AllEntries returns every committed ledger entry, oldest first. Test helper
// for reconciliation checks.
func (s *Store) AllEntries() []models.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]models.LedgerEntry, len(s.st.entries))
	copy(entries, s.st.entries)
	return entries
}

func (s *Store) CreateWithAccount(user *models.User) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.st.users {
		if strings.EqualFold(u.Email, user.Email) || u.Username == user.Username {
			return nil, repositories.ErrDuplicateUser
		}
	}
	user.ID = s.st.nextUserID
	s.st.nextUserID++
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.st.users[user.ID] = *user

	account := &models.Account{UserID: user.ID}
	if err := (&ops{st: s.st, store: s}).CreateAccount(account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Store) GetByID(id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return &u, nil
}

func (s *Store) GetByEmail(email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.st.users {
		if strings.EqualFold(u.Email, email) {
			user := u
			return &user, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (s *Store) GetByUsername(username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.st.users {
		if u.Username == username {
			user := u
			return &user, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (s *Store) BlacklistToken(token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.blacklist[token] = expiresAt
	return nil
}

func (s *Store) IsTokenBlacklisted(token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.st.blacklist[token]
	return ok && expiry.After(time.Now()), nil
}

var _ repositories.UserRepository = (*Store)(nil)
