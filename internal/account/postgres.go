package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresRepository implements Repository using PostgreSQL. Users live in the
// users table and device trust records in the devices table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed account repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user together with its initial devices.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	_, err = tx.Exec(ctx, `INSERT INTO users (id, first_name, last_name, email, phone, password_hash, balance, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		userID, user.FirstName, user.LastName, user.Email, user.Phone, user.PasswordHash,
		user.Balance, user.IsActive, user.CreatedAt.UTC(), user.UpdatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateIdentity
		}
		return err
	}

	for _, d := range user.Devices {
		if _, err := tx.Exec(ctx, `INSERT INTO devices (user_id, device_id, verified, verified_at, last_login, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			userID, d.DeviceID, d.Verified, d.VerifiedAt, d.LastLogin, d.CreatedAt.UTC()); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// FindByID fetches a user and its devices by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, first_name, last_name, email, phone, password_hash, balance, is_active, created_at, updated_at
		FROM users WHERE id = $1`, userID)
	return r.scanUser(ctx, row)
}

// FindByEmail fetches a user and its devices by email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT id, first_name, last_name, email, phone, password_hash, balance, is_active, created_at, updated_at
		FROM users WHERE email = $1`, email)
	return r.scanUser(ctx, row)
}

// AddDevice appends an unverified trust record for the user. Concurrent
// inserts of the same device collapse into one row.
func (r *PostgresRepository) AddDevice(ctx context.Context, userID string, device Device) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return ErrNotFound
	}
	_, err = r.db.Exec(ctx, `INSERT INTO devices (user_id, device_id, verified, verified_at, last_login, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, device_id) DO NOTHING`,
		id, device.DeviceID, device.Verified, device.VerifiedAt, device.LastLogin, device.CreatedAt.UTC())
	return err
}

// TouchDeviceLogin stamps the last successful login on a device record.
func (r *PostgresRepository) TouchDeviceLogin(ctx context.Context, userID, deviceID string, at time.Time) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE devices SET last_login = $1 WHERE user_id = $2 AND device_id = $3`,
		at.UTC(), id, deviceID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// VerifyDevice marks a device as trusted. The transition is one-way.
func (r *PostgresRepository) VerifyDevice(ctx context.Context, userID, deviceID string, at time.Time) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE devices SET verified = TRUE, verified_at = $1 WHERE user_id = $2 AND device_id = $3`,
		at.UTC(), id, deviceID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrDeviceNotFound
	}
	return nil
}

// List returns a page of users matching the optional search text, newest
// first, along with the total match count.
func (r *PostgresRepository) List(ctx context.Context, search string, offset, limit int) ([]User, int, error) {
	pattern := "%" + search + "%"
	const filter = `(first_name ILIKE $1 OR last_name ILIKE $1 OR email ILIKE $1 OR phone ILIKE $1)`

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+filter, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `SELECT id, first_name, last_name, email, phone, password_hash, balance, is_active, created_at, updated_at
		FROM users WHERE `+filter+` ORDER BY created_at DESC OFFSET $2 LIMIT $3`, pattern, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range users {
		devices, err := r.devicesFor(ctx, users[i].ID)
		if err != nil {
			return nil, 0, err
		}
		users[i].Devices = devices
	}

	return users, total, nil
}

// Stats aggregates dashboard figures in a single round trip per metric.
func (r *PostgresRepository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.db.QueryRow(ctx, `SELECT COUNT(*),
		COUNT(*) FILTER (WHERE is_active),
		COALESCE(SUM(balance), 0) FROM users`).Scan(&s.TotalUsers, &s.ActiveUsers, &s.TotalBalance)
	if err != nil {
		return Stats{}, err
	}
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM devices WHERE NOT verified`).Scan(&s.PendingDevices); err != nil {
		return Stats{}, err
	}
	return s, nil
}

func (r *PostgresRepository) scanUser(ctx context.Context, row pgx.Row) (User, error) {
	u, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	devices, err := r.devicesFor(ctx, u.ID)
	if err != nil {
		return User{}, err
	}
	u.Devices = devices
	return u, nil
}

func (r *PostgresRepository) devicesFor(ctx context.Context, userID string) ([]Device, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrNotFound
	}
	rows, err := r.db.Query(ctx, `SELECT device_id, verified, verified_at, last_login, created_at
		FROM devices WHERE user_id = $1 ORDER BY created_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var d Device
		var createdAt time.Time
		if err := rows.Scan(&d.DeviceID, &d.Verified, &d.VerifiedAt, &d.LastLogin, &createdAt); err != nil {
			return nil, err
		}
		d.CreatedAt = createdAt.UTC()
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func scanUserRow(row pgx.Row) (User, error) {
	var (
		u         User
		id        uuid.UUID
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.PasswordHash,
		&u.Balance, &u.IsActive, &createdAt, &updatedAt); err != nil {
		return User{}, err
	}
	u.ID = id.String()
	u.CreatedAt = createdAt.UTC()
	u.UpdatedAt = updatedAt.UTC()
	return u, nil
}
