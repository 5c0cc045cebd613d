package account

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ledgervault/ledgervault/internal/token"
)

var errRepoDown = errors.New("pq: the database system is shutting down")

type failingRepo struct{}

func (failingRepo) Create(context.Context, User) error { return errRepoDown }
func (failingRepo) FindByID(context.Context, string) (User, error) {
	return User{}, errRepoDown
}
func (failingRepo) FindByEmail(context.Context, string) (User, error) {
	return User{}, errRepoDown
}
func (failingRepo) AddDevice(context.Context, string, Device) error { return errRepoDown }
func (failingRepo) TouchDeviceLogin(context.Context, string, string, time.Time) error {
	return errRepoDown
}
func (failingRepo) VerifyDevice(context.Context, string, string, time.Time) error {
	return errRepoDown
}
func (failingRepo) List(context.Context, string, int, int) ([]User, int, error) {
	return nil, 0, errRepoDown
}
func (failingRepo) Stats(context.Context) (Stats, error) { return Stats{}, errRepoDown }

func TestRegisterStoreFailureIsLoggedAndSanitized(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	svc := NewService(failingRepo{}, ledgerStub{}, nil)
	h := NewHandler(svc, token.NewIssuer("secret", time.Hour), validator.New(), logger)

	app := fiber.New()
	app.Post("/register", h.Register)

	payload := `{"firstName":"Jane","lastName":"Doe","email":"jane@example.com","phone":"+1234567890","password":"secret123","deviceId":"device-1"}`
	req := httptest.NewRequest(fiber.MethodPost, "/register", strings.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if strings.Contains(string(body), "database system") {
		t.Fatalf("storage detail leaked to the caller: %s", body)
	}
	if !strings.Contains(logs.String(), "database system") {
		t.Fatalf("underlying store error was not logged: %s", logs.String())
	}
}
