package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mutalechilando/DigitalWalletBackend/internal/models"
	"github.com/mutalechilando/DigitalWalletBackend/internal/repositories"
	"github.com/mutalechilando/DigitalWalletBackend/internal/repositories/memory"
	"github.com/mutalechilando/DigitalWalletBackend/internal/services/identity"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	resolver := identity.NewService(store, store)
	return NewService(store, resolver, nil, Config{}), store
}

func seedAccount(t *testing.T, svc Service, store *memory.Store, username, email, balance string) *models.Account {
	t.Helper()
	account, err := store.CreateWithAccount(&models.User{
		Username: username,
		Email:    email,
		Password: "irrelevant",
	})
	require.NoError(t, err)

	amount := decimal.RequireFromString(balance)
	if amount.IsPositive() {
		_, err = svc.Deposit(context.Background(), account.ID, amount)
		require.NoError(t, err)
	}
	return account
}

func mustBalance(t *testing.T, store *memory.Store, accountID uint) decimal.Decimal {
	t.Helper()
	account, err := store.GetAccountByID(accountID)
	require.NoError(t, err)
	return account.Balance
}

func TestDeposit(t *testing.T) {
	t.Run("adds to balance and appends an entry", func(t *testing.T) {
		svc, store := newTestService(t)
		account := seedAccount(t, svc, store, "alice", "alice@example.com", "100.00")

		entry, err := svc.Deposit(context.Background(), account.ID, decimal.RequireFromString("50.00"))
		require.NoError(t, err)

		assert.True(t, mustBalance(t, store, account.ID).Equal(decimal.RequireFromString("150.00")))
		assert.Nil(t, entry.SenderAccountID)
		require.NotNil(t, entry.ReceiverAccountID)
		assert.Equal(t, account.ID, *entry.ReceiverAccountID)
		assert.True(t, entry.Amount.Equal(decimal.RequireFromString("50.00")))
		assert.NotEmpty(t, entry.Reference)
	})

	t.Run("rejects non-positive and sub-cent amounts", func(t *testing.T) {
		svc, store := newTestService(t)
		account := seedAccount(t, svc, store, "alice", "alice@example.com", "100.00")

		for _, amount := range []string{"0", "-5.00", "10.001"} {
			_, err := svc.Deposit(context.Background(), account.ID, decimal.RequireFromString(amount))
			assert.ErrorIs(t, err, ErrInvalidAmount, "amount %s", amount)
		}
		assert.True(t, mustBalance(t, store, account.ID).Equal(decimal.RequireFromString("100.00")))
		assert.Len(t, store.AllEntries(), 1)
	})

	t.Run("unknown account", func(t *testing.T) {
		svc, store := newTestService(t)

		_, err := svc.Deposit(context.Background(), 99, decimal.RequireFromString("10.00"))
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.Empty(t, store.AllEntries())
	})
}

func TestWithdraw(t *testing.T) {
	t.Run("subtracts and records the negated amount", func(t *testing.T) {
		svc, store := newTestService(t)
		account := seedAccount(t, svc, store, "alice", "alice@example.com", "100.00")

		entry, err := svc.Withdraw(context.Background(), account.ID, decimal.RequireFromString("30.00"))
		require.NoError(t, err)

		assert.True(t, mustBalance(t, store, account.ID).Equal(decimal.RequireFromString("70.00")))
		require.NotNil(t, entry.SenderAccountID)
		assert.Equal(t, account.ID, *entry.SenderAccountID)
		assert.Nil(t, entry.ReceiverAccountID)
		assert.True(t, entry.Amount.Equal(decimal.RequireFromString("-30.00")))
	})

	t.Run("insufficient funds leaves no trace", func(t *testing.T) {
		svc, store := newTestService(t)
		account := seedAccount(t, svc, store, "alice", "alice@example.com", "30.00")
		before := len(store.AllEntries())

		_, err := svc.Withdraw(context.Background(), account.ID, decimal.RequireFromString("50.00"))
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.True(t, mustBalance(t, store, account.ID).Equal(decimal.RequireFromString("30.00")))
		assert.Len(t, store.AllEntries(), before)
	})

	t.Run("rejects invalid amount", func(t *testing.T) {
		svc, store := newTestService(t)
		account := seedAccount(t, svc, store, "alice", "alice@example.com", "30.00")

		_, err := svc.Withdraw(context.Background(), account.ID, decimal.Zero)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestTransfer(t *testing.T) {
	t.Run("moves funds and appends one entry", func(t *testing.T) {
		svc, store := newTestService(t)
		sender := seedAccount(t, svc, store, "alice", "alice@example.com", "100.00")
		receiver := seedAccount(t, svc, store, "bob", "bob@example.com", "10.00")

		entry, err := svc.Transfer(context.Background(), TransferRequest{
			SenderAccountID:   sender.ID,
			ReceiverReference: "bob",
			Amount:            decimal.RequireFromString("40.00"),
		})
		require.NoError(t, err)

		assert.True(t, mustBalance(t, store, sender.ID).Equal(decimal.RequireFromString("60.00")))
		assert.True(t, mustBalance(t, store, receiver.ID).Equal(decimal.RequireFromString("50.00")))
		require.NotNil(t, entry.SenderAccountID)
		require.NotNil(t, entry.ReceiverAccountID)
		assert.Equal(t, sender.ID, *entry.SenderAccountID)
		assert.Equal(t, receiver.ID, *entry.ReceiverAccountID)
		assert.True(t, entry.Amount.Equal(decimal.RequireFromString("40.00")))
	})

	t.Run("resolves receiver by email and by account id", func(t *testing.T) {
		svc, store := newTestService(t)
		sender := seedAccount(t, svc, store, "alice", "alice@example.com", "100.00")
		receiver := seedAccount(t, svc, store, "bob", "bob@example.com", "0")

		_, err := svc.Transfer(context.Background(), TransferRequest{
			SenderAccountID:   sender.ID,
			ReceiverReference: "bob@example.com",
			Amount:            decimal.RequireFromString("10.00"),
		})
		require.NoError(t, err)

		_, err = svc.Transfer(context.Background(), TransferRequest{
			SenderAccountID:   sender.ID,
			ReceiverReference: "2",
			Amount:            decimal.RequireFromString("10.00"),
		})
		require.NoError(t, err)

		assert.True(t, mustBalance(t, store, receiver.ID).Equal(decimal.RequireFromString("20.00")))
	})

	t.Run("unknown receiver leaves balances and ledger untouched", func(t *testing.T) {
		svc, store := newTestService(t)
		sender := seedAccount(t, svc, store, "alice", "alice@example.com", "100.00")
		before := len(store.AllEntries())

		_, err := svc.Transfer(context.Background(), TransferRequest{
			SenderAccountID:   sender.ID,
			ReceiverReference: "nonexistent@x.com",
			Amount:            decimal.RequireFromString("10.00"),
		})
		assert.ErrorIs(t, err, identity.ErrNotFound)
		assert.True(t, mustBalance(t, store, sender.ID).Equal(decimal.RequireFromString("100.00")))
		assert.Len(t, store.AllEntries(), before)
	})

	t.Run("rejects transfer to self", func(t *testing.T) {
		svc, store := newTestService(t)
		sender := seedAccount(t, svc, store, "alice", "alice@example.com", "100.00")

		_, err := svc.Transfer(context.Background(), TransferRequest{
			SenderAccountID:   sender.ID,
			ReceiverReference: "alice",
			Amount:            decimal.RequireFromString("10.00"),
		})
		assert.ErrorIs(t, err, ErrSelfTransfer)
		assert.True(t, mustBalance(t, store, sender.ID).Equal(decimal.RequireFromString("100.00")))
	})

	t.Run("insufficient funds", func(t *testing.T) {
		svc, store := newTestService(t)
		sender := seedAccount(t, svc, store, "alice", "alice@example.com", "20.00")
		seedAccount(t, svc, store, "bob", "bob@example.com", "0")

		_, err := svc.Transfer(context.Background(), TransferRequest{
			SenderAccountID:   sender.ID,
			ReceiverReference: "bob",
			Amount:            decimal.RequireFromString("20.01"),
		})
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.True(t, mustBalance(t, store, sender.ID).Equal(decimal.RequireFromString("20.00")))
	})

	t.Run("idempotency key deduplicates a retry", func(t *testing.T) {
		svc, store := newTestService(t)
		sender := seedAccount(t, svc, store, "alice", "alice@example.com", "100.00")
		receiver := seedAccount(t, svc, store, "bob", "bob@example.com", "0")

		req := TransferRequest{
			SenderAccountID:   sender.ID,
			ReceiverReference: "bob",
			Amount:            decimal.RequireFromString("25.00"),
			IdempotencyKey:    "transfer-001",
		}

		first, err := svc.Transfer(context.Background(), req)
		require.NoError(t, err)

		second, err := svc.Transfer(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		// Applied exactly once.
		assert.True(t, mustBalance(t, store, sender.ID).Equal(decimal.RequireFromString("75.00")))
		assert.True(t, mustBalance(t, store, receiver.ID).Equal(decimal.RequireFromString("25.00")))
	})

	t.Run("idempotency key reused for a different transfer is rejected", func(t *testing.T) {
		svc, store := newTestService(t)
		sender := seedAccount(t, svc, store, "alice", "alice@example.com", "100.00")
		receiver := seedAccount(t, svc, store, "bob", "bob@example.com", "0")
		seedAccount(t, svc, store, "carol", "carol@example.com", "0")

		_, err := svc.Transfer(context.Background(), TransferRequest{
			SenderAccountID:   sender.ID,
			ReceiverReference: "bob",
			Amount:            decimal.RequireFromString("25.00"),
			IdempotencyKey:    "transfer-001",
		})
		require.NoError(t, err)

		// Same key, different amount.
		_, err = svc.Transfer(context.Background(), TransferRequest{
			SenderAccountID:   sender.ID,
			ReceiverReference: "bob",
			Amount:            decimal.RequireFromString("99.00"),
			IdempotencyKey:    "transfer-001",
		})
		assert.ErrorIs(t, err, ErrKeyReused)

		// Same key, different receiver.
		_, err = svc.Transfer(context.Background(), TransferRequest{
			SenderAccountID:   sender.ID,
			ReceiverReference: "carol",
			Amount:            decimal.RequireFromString("25.00"),
			IdempotencyKey:    "transfer-001",
		})
		assert.ErrorIs(t, err, ErrKeyReused)

		// The original transfer stands untouched.
		assert.True(t, mustBalance(t, store, sender.ID).Equal(decimal.RequireFromString("75.00")))
		assert.True(t, mustBalance(t, store, receiver.ID).Equal(decimal.RequireFromString("25.00")))
	})
}

func TestAtomicity(t *testing.T) {
	t.Run("failed append rolls back the deposit", func(t *testing.T) {
		svc, store := newTestService(t)
		account := seedAccount(t, svc, store, "alice", "alice@example.com", "100.00")
		before := len(store.AllEntries())

		store.FailNextAppend(errors.New("storage fault"))
		_, err := svc.Deposit(context.Background(), account.ID, decimal.RequireFromString("50.00"))
		require.Error(t, err)

		assert.True(t, mustBalance(t, store, account.ID).Equal(decimal.RequireFromString("100.00")))
		assert.Len(t, store.AllEntries(), before)
	})

	t.Run("failed append rolls back both transfer legs", func(t *testing.T) {
		svc, store := newTestService(t)
		sender := seedAccount(t, svc, store, "alice", "alice@example.com", "100.00")
		receiver := seedAccount(t, svc, store, "bob", "bob@example.com", "10.00")
		before := len(store.AllEntries())

		store.FailNextAppend(errors.New("storage fault"))
		_, err := svc.Transfer(context.Background(), TransferRequest{
			SenderAccountID:   sender.ID,
			ReceiverReference: "bob",
			Amount:            decimal.RequireFromString("40.00"),
		})
		require.Error(t, err)

		assert.True(t, mustBalance(t, store, sender.ID).Equal(decimal.RequireFromString("100.00")))
		assert.True(t, mustBalance(t, store, receiver.ID).Equal(decimal.RequireFromString("10.00")))
		assert.Len(t, store.AllEntries(), before)
	})
}

func TestConcurrency(t *testing.T) {
	t.Run("two racing transfers cannot overdraw", func(t *testing.T) {
		svc, store := newTestService(t)
		sender := seedAccount(t, svc, store, "alice", "alice@example.com", "100.00")
		receiver := seedAccount(t, svc, store, "bob", "bob@example.com", "0")

		var wg sync.WaitGroup
		results := make(chan error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Transfer(context.Background(), TransferRequest{
					SenderAccountID:   sender.ID,
					ReceiverReference: "bob",
					Amount:            decimal.RequireFromString("60.00"),
				})
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var succeeded, rejected int
		for err := range results {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, ErrInsufficientFunds)
				rejected++
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, rejected)
		assert.True(t, mustBalance(t, store, sender.ID).Equal(decimal.RequireFromString("40.00")))
		assert.True(t, mustBalance(t, store, receiver.ID).Equal(decimal.RequireFromString("60.00")))
	})

	t.Run("concurrent withdrawals never exceed the balance", func(t *testing.T) {
		svc, store := newTestService(t)
		account := seedAccount(t, svc, store, "alice", "alice@example.com", "100.00")

		const workers = 10
		withdrawal := decimal.RequireFromString("30.00")

		var wg sync.WaitGroup
		results := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Withdraw(context.Background(), account.ID, withdrawal)
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var succeeded int
		for err := range results {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, ErrInsufficientFunds)
			}
		}

		total := withdrawal.Mul(decimal.NewFromInt(int64(succeeded)))
		assert.True(t, total.LessThanOrEqual(decimal.RequireFromString("100.00")))
		want := decimal.RequireFromString("100.00").Sub(total)
		got := mustBalance(t, store, account.ID)
		assert.True(t, got.Equal(want), "balance %s, want %s", got, want)
		assert.False(t, got.IsNegative())
	})
}

// entryContribution attributes a signed ledger amount to one account under
// the engine's sign convention.
func entryContribution(e models.LedgerEntry, accountID uint) decimal.Decimal {
	if e.ReceiverAccountID != nil && *e.ReceiverAccountID == accountID {
		return e.Amount
	}
	if e.SenderAccountID != nil && *e.SenderAccountID == accountID {
		if e.ReceiverAccountID == nil {
			// Withdrawal: stored negated.
			return e.Amount
		}
		// Transfer out.
		return e.Amount.Neg()
	}
	return decimal.Zero
}

func TestReconciliation(t *testing.T) {
	svc, store := newTestService(t)
	alice := seedAccount(t, svc, store, "alice", "alice@example.com", "200.00")
	bob := seedAccount(t, svc, store, "bob", "bob@example.com", "50.00")

	ctx := context.Background()
	_, err := svc.Withdraw(ctx, alice.ID, decimal.RequireFromString("20.00"))
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, TransferRequest{
		SenderAccountID:   alice.ID,
		ReceiverReference: "bob",
		Amount:            decimal.RequireFromString("35.50"),
	})
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, bob.ID, decimal.RequireFromString("4.25"))
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, TransferRequest{
		SenderAccountID:   bob.ID,
		ReceiverReference: "alice",
		Amount:            decimal.RequireFromString("10.00"),
	})
	require.NoError(t, err)

	for _, accountID := range []uint{alice.ID, bob.ID} {
		sum := decimal.Zero
		for _, e := range store.AllEntries() {
			sum = sum.Add(entryContribution(e, accountID))
		}
		balance := mustBalance(t, store, accountID)
		assert.True(t, balance.Equal(sum), "account %d: balance %s, ledger sum %s", accountID, balance, sum)
		assert.False(t, balance.IsNegative())
	}
}

func TestGetBalance(t *testing.T) {
	t.Run("repeated reads are identical", func(t *testing.T) {
		svc, store := newTestService(t)
		account := seedAccount(t, svc, store, "alice", "alice@example.com", "77.25")

		first, err := svc.GetBalance(context.Background(), account.ID)
		require.NoError(t, err)
		second, err := svc.GetBalance(context.Background(), account.ID)
		require.NoError(t, err)
		assert.True(t, first.Equal(second))
		assert.True(t, first.Equal(decimal.RequireFromString("77.25")))
	})

	t.Run("unknown account", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.GetBalance(context.Background(), 404)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}

// flakyRepo fails ExecuteInTransaction with a fixed fault a fixed number of
// times before delegating.
type flakyRepo struct {
	repositories.LedgerRepository
	remaining int
	err       error
}

func (f *flakyRepo) ExecuteInTransaction(fn func(repositories.LedgerRepository) error) error {
	if f.remaining > 0 {
		f.remaining--
		return f.err
	}
	return f.LedgerRepository.ExecuteInTransaction(fn)
}

func serializationFailure() error {
	return &pgconn.PgError{Code: "40001", Message: "serialization failure"}
}

func TestTransientRetry(t *testing.T) {
	t.Run("recovers within the retry budget", func(t *testing.T) {
		store := memory.NewStore()
		resolver := identity.NewService(store, store)
		flaky := &flakyRepo{LedgerRepository: store, remaining: 2, err: serializationFailure()}
		svc := NewService(flaky, resolver, nil, Config{MaxRetries: 3, RetryBackoff: 1})

		account, err := store.CreateWithAccount(&models.User{Username: "alice", Email: "alice@example.com", Password: "x"})
		require.NoError(t, err)

		_, err = svc.Deposit(context.Background(), account.ID, decimal.RequireFromString("10.00"))
		require.NoError(t, err)
		assert.True(t, mustBalance(t, store, account.ID).Equal(decimal.RequireFromString("10.00")))
	})

	t.Run("reports a transient failure once the budget is spent", func(t *testing.T) {
		store := memory.NewStore()
		resolver := identity.NewService(store, store)
		flaky := &flakyRepo{LedgerRepository: store, remaining: 10, err: serializationFailure()}
		svc := NewService(flaky, resolver, nil, Config{MaxRetries: 2, RetryBackoff: 1})

		account, err := store.CreateWithAccount(&models.User{Username: "alice", Email: "alice@example.com", Password: "x"})
		require.NoError(t, err)

		_, err = svc.Deposit(context.Background(), account.ID, decimal.RequireFromString("10.00"))
		assert.ErrorIs(t, err, ErrTransientStorage)
		assert.True(t, mustBalance(t, store, account.ID).Equal(decimal.Zero))
		assert.Empty(t, store.AllEntries())
	})

	t.Run("caller cancellation is not retried", func(t *testing.T) {
		store := memory.NewStore()
		resolver := identity.NewService(store, store)
		flaky := &flakyRepo{LedgerRepository: store, remaining: 1, err: context.Canceled}
		svc := NewService(flaky, resolver, nil, Config{MaxRetries: 3, RetryBackoff: 1})

		account, err := store.CreateWithAccount(&models.User{Username: "alice", Email: "alice@example.com", Password: "x"})
		require.NoError(t, err)

		_, err = svc.Deposit(context.Background(), account.ID, decimal.RequireFromString("10.00"))
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrTransientStorage)
		// The fault was surfaced on the first attempt, not burned through
		// the retry budget.
		assert.Equal(t, 0, flaky.remaining)
		assert.Empty(t, store.AllEntries())
	})
}
