package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidAmount occurs when a posting amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientFunds occurs when a withdrawal exceeds the available
	// balance. The balance is left untouched and no ledger entry is written.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUserNotFound indicates the posting referenced an unknown user.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserInactive indicates the account exists but cannot transact.
	ErrUserInactive = errors.New("account is inactive")
)

const (
	// TypeDeposit credits the user's balance.
	TypeDeposit = "deposit"
	// TypeWithdrawal debits the user's balance.
	TypeWithdrawal = "withdrawal"

	// StatusPending marks a posting that has not settled yet.
	StatusPending = "pending"
	// StatusCompleted marks a settled posting.
	StatusCompleted = "completed"
	// StatusFailed marks a posting rejected after creation.
	StatusFailed = "failed"
)

// Transaction is one immutable ledger entry. Amounts and balances are integer
// minor units; BalanceBefore/BalanceAfter snapshot the balance around the
// mutation that produced the entry. CreatedAt is assigned by the store while
// the mutation is serialized, never by the caller.
type Transaction struct {
	ID            string
	UserID        string
	Type          string
	Amount        int64
	BalanceBefore int64
	BalanceAfter  int64
	Description   string
	Status        string
	CreatedAt     time.Time
}

// Store is the storage contract for balances and ledger entries. ApplyDelta
// must adjust the user's balance and append the entry atomically: either both
// are durable or neither is, and concurrent postings for the same user must
// not lose updates. It stamps the entry's CreatedAt inside the serialized
// section, so within one user, createdAt order follows balance-mutation order
// and newest-first listings agree with the balance chain.
type Store interface {
	EnsureAccount(ctx context.Context, userID string) error
	ApplyDelta(ctx context.Context, userID string, delta int64, entry Transaction) (Transaction, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]Transaction, int, error)
	Recent(ctx context.Context, limit int) ([]Transaction, error)
}
