package account

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested user does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrDuplicateIdentity indicates the email or phone is already registered.
	ErrDuplicateIdentity = errors.New("user with this email or phone already exists")

	// ErrDeviceNotFound indicates no trust record matches the device identifier.
	ErrDeviceNotFound = errors.New("device not found")
)

// Repository persists users and their embedded device trust records.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	AddDevice(ctx context.Context, userID string, device Device) error
	TouchDeviceLogin(ctx context.Context, userID, deviceID string, at time.Time) error
	VerifyDevice(ctx context.Context, userID, deviceID string, at time.Time) error
	List(ctx context.Context, search string, offset, limit int) ([]User, int, error)
	Stats(ctx context.Context) (Stats, error)
}
