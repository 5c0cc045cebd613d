package ledger

import (
	"context"
	"sync"
	"time"
)

type memAccount struct {
	balance int64
	active  bool
}

// BalanceSink receives the resulting balance after each posting. The
// in-memory store uses it to keep the account repository's balance view in
// step, mirroring what the balance column does on Postgres.
type BalanceSink interface {
	SetBalance(userID string, balance int64)
}

type inMemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*memAccount
	entries  []Transaction
	sink     BalanceSink
}

// NewInMemory creates a concurrency-safe in-memory ledger store used by tests
// and by the development server when no database is configured.
func NewInMemory() Store {
	return &inMemoryStore{accounts: make(map[string]*memAccount)}
}

// NewInMemoryWithSink is NewInMemory with a balance write-back hook.
func NewInMemoryWithSink(sink BalanceSink) Store {
	return &inMemoryStore{accounts: make(map[string]*memAccount), sink: sink}
}

func (s *inMemoryStore) EnsureAccount(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[userID]; !exists {
		s.accounts[userID] = &memAccount{active: true}
	}
	return nil
}

func (s *inMemoryStore) ApplyDelta(_ context.Context, userID string, delta int64, entry Transaction) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[userID]
	if !ok {
		return Transaction{}, ErrUserNotFound
	}
	if !acct.active {
		return Transaction{}, ErrUserInactive
	}
	if acct.balance+delta < 0 {
		return Transaction{}, ErrInsufficientFunds
	}

	// Stamped under the lock so createdAt order always matches mutation order.
	entry.CreatedAt = time.Now().UTC()
	entry.BalanceBefore = acct.balance
	acct.balance += delta
	entry.BalanceAfter = acct.balance
	s.entries = append(s.entries, entry)
	if s.sink != nil {
		s.sink.SetBalance(userID, acct.balance)
	}
	return entry, nil
}

func (s *inMemoryStore) ListByUser(_ context.Context, userID string, offset, limit int) ([]Transaction, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Entries append in mutation order, so newest first is reverse order.
	var matched []Transaction
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].UserID == userID {
			matched = append(matched, s.entries[i])
		}
	}

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *inMemoryStore) Recent(_ context.Context, limit int) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recent := make([]Transaction, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, s.entries[i])
	}
	return recent, nil
}
