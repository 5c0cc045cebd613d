package account

import (
	"context"
	"errors"
	"testing"
)

type ledgerStub struct{}

func (ledgerStub) EnsureAccount(context.Context, string) error { return nil }

func newTestService() (*Service, *MemoryRepository) {
	repo := NewMemoryRepository()
	return NewService(repo, ledgerStub{}, nil), repo
}

func registerTestUser(t *testing.T, svc *Service, email, phone, deviceID string) User {
	t.Helper()
	user, err := svc.Register(context.Background(), RegisterInput{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     email,
		Phone:     phone,
		Password:  "secret123",
		DeviceID:  deviceID,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return user
}

func TestRegisterCreatesSingleUnverifiedDevice(t *testing.T) {
	svc, _ := newTestService()
	user := registerTestUser(t, svc, "jane@example.com", "+1000", "device-1")

	if user.Balance != 0 {
		t.Fatalf("expected zero balance, got %d", user.Balance)
	}
	if !user.IsActive {
		t.Fatal("expected new user to be active")
	}
	if len(user.Devices) != 1 {
		t.Fatalf("expected exactly one device, got %d", len(user.Devices))
	}
	d := user.Devices[0]
	if d.DeviceID != "device-1" || d.Verified {
		t.Fatalf("expected unverified device-1, got %+v", d)
	}
	if d.VerifiedAt != nil {
		t.Fatal("verifiedAt must be unset on a fresh device")
	}
}

func TestRegisterRejectsDuplicateIdentity(t *testing.T) {
	svc, _ := newTestService()
	registerTestUser(t, svc, "jane@example.com", "+1000", "device-1")

	_, err := svc.Register(context.Background(), RegisterInput{
		FirstName: "John", LastName: "Doe",
		Email: "jane@example.com", Phone: "+2000",
		Password: "secret123", DeviceID: "device-2",
	})
	if !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity on duplicate email, got %v", err)
	}

	_, err = svc.Register(context.Background(), RegisterInput{
		FirstName: "John", LastName: "Doe",
		Email: "john@example.com", Phone: "+1000",
		Password: "secret123", DeviceID: "device-2",
	})
	if !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity on duplicate phone, got %v", err)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Register(context.Background(), RegisterInput{
		FirstName: "Jane", LastName: "Doe",
		Email: "jane@example.com", Phone: "+1000",
		Password: "abc", DeviceID: "device-1",
	})
	if err == nil {
		t.Fatal("expected short password to be rejected")
	}
}

func TestAuthenticateWrongCredentials(t *testing.T) {
	svc, _ := newTestService()
	registerTestUser(t, svc, "jane@example.com", "+1000", "device-1")
	ctx := context.Background()

	if _, _, err := svc.Authenticate(ctx, "jane@example.com", "wrong", "device-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, _, err := svc.Authenticate(ctx, "nobody@example.com", "secret123", "device-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	svc, repo := newTestService()
	user := registerTestUser(t, svc, "jane@example.com", "+1000", "device-1")
	repo.SetActive(user.ID, false)

	if _, _, err := svc.Authenticate(context.Background(), "jane@example.com", "secret123", "device-1"); !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
}

func TestAuthenticateUnknownDeviceAutoRegistersUnverified(t *testing.T) {
	svc, repo := newTestService()
	user := registerTestUser(t, svc, "jane@example.com", "+1000", "device-1")
	ctx := context.Background()

	got, verified, err := svc.Authenticate(ctx, "jane@example.com", "secret123", "device-2")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if verified {
		t.Fatal("a brand-new device must not be verified")
	}

	stored, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(stored.Devices) != 2 {
		t.Fatalf("expected the new device to be persisted, got %d devices", len(stored.Devices))
	}
	d, ok := stored.FindDevice("device-2")
	if !ok || d.Verified {
		t.Fatalf("expected persisted unverified device-2, got %+v ok=%v", d, ok)
	}
	if len(got.Devices) != 2 {
		t.Fatalf("returned user should include the new device, got %d", len(got.Devices))
	}
}

func TestAuthenticateKnownUnverifiedDevice(t *testing.T) {
	svc, _ := newTestService()
	registerTestUser(t, svc, "jane@example.com", "+1000", "device-1")

	_, verified, err := svc.Authenticate(context.Background(), "jane@example.com", "secret123", "device-1")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if verified {
		t.Fatal("device must stay unverified until admin action")
	}
}

func TestAuthenticateVerifiedDeviceTouchesLastLogin(t *testing.T) {
	svc, repo := newTestService()
	user := registerTestUser(t, svc, "jane@example.com", "+1000", "device-1")
	ctx := context.Background()

	if _, err := svc.VerifyDevice(ctx, user.ID, "device-1"); err != nil {
		t.Fatalf("verify device: %v", err)
	}

	_, verified, err := svc.Authenticate(ctx, "jane@example.com", "secret123", "device-1")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if !verified {
		t.Fatal("expected verified device login")
	}

	stored, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	d, _ := stored.FindDevice("device-1")
	if d.LastLogin == nil {
		t.Fatal("expected lastLogin to be stamped for a verified device")
	}
}

func TestVerifyDeviceTransitions(t *testing.T) {
	svc, _ := newTestService()
	user := registerTestUser(t, svc, "jane@example.com", "+1000", "device-1")
	ctx := context.Background()

	if err := RequireVerifiedDevice(user, "device-1"); !errors.Is(err, ErrDeviceNotVerified) {
		t.Fatalf("expected ErrDeviceNotVerified before admin action, got %v", err)
	}
	if err := RequireVerifiedDevice(user, "unknown"); !errors.Is(err, ErrDeviceNotVerified) {
		t.Fatalf("expected ErrDeviceNotVerified for unknown device, got %v", err)
	}

	if _, err := svc.VerifyDevice(ctx, user.ID, "unknown"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
	if _, err := svc.VerifyDevice(ctx, "missing-user", "device-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	updated, err := svc.VerifyDevice(ctx, user.ID, "device-1")
	if err != nil {
		t.Fatalf("verify device: %v", err)
	}
	d, _ := updated.FindDevice("device-1")
	if !d.Verified || d.VerifiedAt == nil {
		t.Fatalf("expected verified device with timestamp, got %+v", d)
	}
	if err := RequireVerifiedDevice(updated, "device-1"); err != nil {
		t.Fatalf("gate should pass after verification: %v", err)
	}
}
