package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ledgervault/ledgervault/internal/notification"
)

const (
	bcryptCost        = 12
	minPasswordLength = 6
)

var (
	// ErrInvalidCredentials covers unknown email and wrong password alike so
	// the response never reveals which of the two failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInactive indicates the account exists but has been deactivated.
	ErrInactive = errors.New("account is inactive")

	// ErrDeviceNotVerified gates protected operations on device trust.
	ErrDeviceNotVerified = errors.New("device not verified")
)

// BalanceAccounts provisions ledger accounts for new users. Satisfied by
// ledger.Store.
type BalanceAccounts interface {
	EnsureAccount(ctx context.Context, userID string) error
}

// Service manages account lifecycle and the device trust state machine.
type Service struct {
	repo     Repository
	ledger   BalanceAccounts
	notifier notification.Notifier
}

// NewService creates a new account service.
func NewService(repo Repository, ledger BalanceAccounts, notifier notification.Notifier) *Service {
	return &Service{repo: repo, ledger: ledger, notifier: notifier}
}

// RegisterInput captures data required to open an account.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Password  string
	DeviceID  string
}

// Register creates a user with a zero balance and exactly one unverified
// device. The device stays unusable for transactions until an admin verifies it.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	if len(input.Password) < minPasswordLength {
		return User{}, fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	user := User{
		ID:           uuid.New().String(),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		Phone:        input.Phone,
		PasswordHash: hash,
		Balance:      0,
		Devices: []Device{{
			DeviceID:  input.DeviceID,
			Verified:  false,
			CreatedAt: now,
		}},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}

	if err := s.ledger.EnsureAccount(ctx, user.ID); err != nil {
		return User{}, err
	}

	return user, nil
}

// Authenticate verifies credentials and resolves device trust. An unknown
// device is registered unverified as a side effect; login itself still
// succeeds and the returned flag tells the caller whether the device may be
// used for protected operations.
func (s *Service) Authenticate(ctx context.Context, email, password, deviceID string) (User, bool, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, false, ErrInvalidCredentials
		}
		return User{}, false, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, false, ErrInvalidCredentials
	}

	if !user.IsActive {
		return User{}, false, ErrInactive
	}

	now := time.Now().UTC()
	device, known := user.FindDevice(deviceID)
	if !known {
		added := Device{DeviceID: deviceID, Verified: false, CreatedAt: now}
		if err := s.repo.AddDevice(ctx, user.ID, added); err != nil {
			return User{}, false, err
		}
		user.Devices = append(user.Devices, added)
		s.notifyNewDevice(ctx, user, deviceID)
		return user, false, nil
	}

	if !device.Verified {
		return user, false, nil
	}

	if err := s.repo.TouchDeviceLogin(ctx, user.ID, deviceID, now); err != nil {
		return User{}, false, err
	}
	return user, true, nil
}

// RequireVerifiedDevice rejects the (user, device) pair unless a matching
// trust record exists and is verified. Used by the authenticated-request gate.
func RequireVerifiedDevice(user User, deviceID string) error {
	device, ok := user.FindDevice(deviceID)
	if !ok || !device.Verified {
		return ErrDeviceNotVerified
	}
	return nil
}

// VerifyDevice grants trust to a device. Admin-invoked; the transition is
// permanent.
func (s *Service) VerifyDevice(ctx context.Context, userID, deviceID string) (User, error) {
	if err := s.repo.VerifyDevice(ctx, userID, deviceID, time.Now().UTC()); err != nil {
		return User{}, err
	}
	return s.repo.FindByID(ctx, userID)
}

func (s *Service) notifyNewDevice(ctx context.Context, user User, deviceID string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindNewDevice,
		Destination: user.Email,
		Body:        fmt.Sprintf("new unverified device %s registered for user %s", deviceID, user.ID),
	})
}
