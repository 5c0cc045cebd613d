package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ledgervault/ledgervault/internal/metrics"
)

const (
	defaultPage     = 1
	defaultPageSize = 10

	// Reads have no side effects, so transient store failures are retried.
	readAttempts = 3
)

// Service exposes balance postings and history retrieval.
type Service struct {
	store Store
}

// NewService builds a ledger service instance.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Page is one slice of a user's transaction history with pagination metadata.
type Page struct {
	Transactions []Transaction
	Page         int
	PageSize     int
	Total        int
	Pages        int
}

// Deposit credits the user's balance and appends a completed ledger entry.
func (s *Service) Deposit(ctx context.Context, userID string, amount int64, description string) (Transaction, error) {
	return s.post(ctx, userID, TypeDeposit, amount, description)
}

// Withdraw debits the user's balance and appends a completed ledger entry.
// Insufficient funds reject the posting without mutating anything.
func (s *Service) Withdraw(ctx context.Context, userID string, amount int64, description string) (Transaction, error) {
	return s.post(ctx, userID, TypeWithdrawal, amount, description)
}

// History returns a page of the user's entries, newest first. Non-positive
// page or size values fall back to the defaults rather than erroring; a page
// past the end yields an empty slice.
func (s *Service) History(ctx context.Context, userID string, page, pageSize int) (Page, error) {
	if page < 1 {
		page = defaultPage
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	var (
		entries []Transaction
		total   int
		err     error
	)
	for attempt := 0; attempt < readAttempts; attempt++ {
		entries, total, err = s.store.ListByUser(ctx, userID, (page-1)*pageSize, pageSize)
		if err == nil || errors.Is(err, ErrUserNotFound) || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return Page{}, err
	}

	return Page{
		Transactions: entries,
		Page:         page,
		PageSize:     pageSize,
		Total:        total,
		Pages:        (total + pageSize - 1) / pageSize,
	}, nil
}

func (s *Service) post(ctx context.Context, userID, kind string, amount int64, description string) (Transaction, error) {
	if amount <= 0 {
		metrics.PostingsTotal.WithLabelValues(kind, "invalid_amount").Inc()
		return Transaction{}, ErrInvalidAmount
	}

	delta := amount
	if kind == TypeWithdrawal {
		delta = -amount
	}

	// CreatedAt is stamped by the store at the serialization point, not here.
	entry := Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        kind,
		Amount:      amount,
		Description: description,
		Status:      StatusCompleted,
	}

	posted, err := s.store.ApplyDelta(ctx, userID, delta, entry)
	if err != nil {
		metrics.PostingsTotal.WithLabelValues(kind, outcomeLabel(err)).Inc()
		return Transaction{}, err
	}

	metrics.PostingsTotal.WithLabelValues(kind, "completed").Inc()
	return posted, nil
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrUserInactive):
		return "user_inactive"
	default:
		return "store_error"
	}
}
