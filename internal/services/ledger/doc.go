// Package ledger implements the transfer engine: the only writer of account
// balances and ledger entries.
//
// Every operation (deposit, withdraw, transfer) runs as one atomic unit that
// pairs the balance mutation with its ledger entry; either both commit or
// neither is visible. Concurrent operations against the same account
// serialize on the account row, and transfers apply their two deltas in
// ascending account-ID order so opposite-direction transfers cannot
// deadlock.
//
// Business rejections (invalid amount, insufficient funds, unknown account)
// are deterministic and returned as-is. Storage faults that are safe to
// retry surface as ErrTransientStorage after the engine's own bounded
// retries are exhausted.
package ledger
