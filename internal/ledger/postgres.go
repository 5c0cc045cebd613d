package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists balances on the users table and ledger entries in
// the transactions table. Both sides of a posting commit in one database
// transaction, so a crash can never leave a mutated balance without its entry.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureAccount is a no-op: the balance column is created with the user row.
func (s *PostgresStore) EnsureAccount(_ context.Context, _ string) error {
	return nil
}

// ApplyDelta atomically adjusts the user's balance and appends the ledger
// entry. The balance mutation is a single conditional UPDATE, so concurrent
// postings for the same user serialize at the row lock and can never lose an
// update or drive the balance negative.
func (s *PostgresStore) ApplyDelta(ctx context.Context, userID string, delta int64, entry Transaction) (Transaction, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return Transaction{}, ErrUserNotFound
	}
	entryID, err := uuid.Parse(entry.ID)
	if err != nil {
		return Transaction{}, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var after int64
	err = tx.QueryRow(ctx, `UPDATE users
		SET balance = balance + $1, updated_at = $2
		WHERE id = $3 AND is_active AND balance + $1 >= 0
		RETURNING balance`, delta, time.Now().UTC(), uid).Scan(&after)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, s.classifyRejection(ctx, uid)
		}
		return Transaction{}, err
	}

	entry.BalanceBefore = after - delta
	entry.BalanceAfter = after

	// clock_timestamp() runs while the row lock from the UPDATE is held, so
	// createdAt order always matches balance-mutation order for one user.
	var createdAt time.Time
	if err := tx.QueryRow(ctx, `INSERT INTO transactions (id, user_id, type, amount, balance_before, balance_after, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, clock_timestamp())
		RETURNING created_at`,
		entryID, uid, entry.Type, entry.Amount, entry.BalanceBefore, entry.BalanceAfter,
		entry.Description, entry.Status).Scan(&createdAt); err != nil {
		return Transaction{}, err
	}
	entry.CreatedAt = createdAt.UTC()

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}

	return entry, nil
}

// ListByUser returns a page of the user's entries, newest first, plus the
// total entry count.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string, offset, limit int) ([]Transaction, int, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, 0, ErrUserNotFound
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE user_id = $1`, uid).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(ctx, `SELECT id, user_id, type, amount, balance_before, balance_after, description, status, created_at
		FROM transactions WHERE user_id = $1
		ORDER BY seq DESC OFFSET $2 LIMIT $3`, uid, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries, err := scanTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Recent returns the newest entries across all users, for the admin dashboard.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `SELECT id, user_id, type, amount, balance_before, balance_after, description, status, created_at
		FROM transactions ORDER BY seq DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// classifyRejection decides why the conditional update matched no row.
func (s *PostgresStore) classifyRejection(ctx context.Context, uid uuid.UUID) error {
	var active bool
	err := s.db.QueryRow(ctx, `SELECT is_active FROM users WHERE id = $1`, uid).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if !active {
		return ErrUserInactive
	}
	return ErrInsufficientFunds
}

func scanTransactions(rows pgx.Rows) ([]Transaction, error) {
	var entries []Transaction
	for rows.Next() {
		var (
			e         Transaction
			id        uuid.UUID
			userID    uuid.UUID
			createdAt time.Time
		)
		if err := rows.Scan(&id, &userID, &e.Type, &e.Amount, &e.BalanceBefore, &e.BalanceAfter,
			&e.Description, &e.Status, &createdAt); err != nil {
			return nil, err
		}
		e.ID = id.String()
		e.UserID = userID.String()
		e.CreatedAt = createdAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
