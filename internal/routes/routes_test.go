package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ledgervault/ledgervault/internal/config"
	"github.com/ledgervault/ledgervault/internal/logging"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := config.Config{
		AppName:        "ledgervault-test",
		AppEnv:         "test",
		JWTSecret:      "routes-test-secret",
		TokenTTL:       time.Hour,
		AdminEmail:     "root@example.com",
		AdminPassword:  "admin-secret",
		IdempotencyTTL: time.Minute,
	}
	app := fiber.New()
	if err := Setup(app, Deps{Cfg: cfg, Logger: logging.Discard()}); err != nil {
		t.Fatalf("setup routes: %v", err)
	}
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, bearer string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

func TestDeviceVerificationTransactionFlow(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, fiber.MethodPost, "/api/auth/register", "", fiber.Map{
		"firstName": "Jane",
		"lastName":  "Doe",
		"email":     "jane@example.com",
		"phone":     "+1234567890",
		"password":  "secret123",
		"deviceId":  "device-1",
	})
	if status != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%v)", status, body)
	}
	userID, _ := body["userId"].(string)
	if userID == "" {
		t.Fatalf("register: missing userId in %v", body)
	}

	status, body = doJSON(t, app, fiber.MethodPost, "/api/auth/login", "", fiber.Map{
		"email":    "jane@example.com",
		"password": "secret123",
		"deviceId": "device-1",
	})
	if status != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%v)", status, body)
	}
	if verified, _ := body["deviceVerified"].(bool); verified {
		t.Fatal("login: device must be unverified before admin action")
	}
	userToken, _ := body["token"].(string)
	if userToken == "" {
		t.Fatal("login: missing token")
	}

	// The bearer token is valid but the device is not trusted yet.
	status, _ = doJSON(t, app, fiber.MethodPost, "/api/transactions/deposit", userToken, fiber.Map{
		"amount":      10_000,
		"description": "first deposit",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("deposit before verification: expected 401, got %d", status)
	}

	status, body = doJSON(t, app, fiber.MethodPost, "/api/auth/admin/login", "", fiber.Map{
		"email":    "root@example.com",
		"password": "admin-secret",
	})
	if status != http.StatusOK {
		t.Fatalf("admin login: expected 200, got %d (%v)", status, body)
	}
	adminToken, _ := body["token"].(string)

	status, body = doJSON(t, app, fiber.MethodPost, "/api/admin/users/"+userID+"/verify-device", adminToken, fiber.Map{
		"deviceId": "device-1",
	})
	if status != http.StatusOK {
		t.Fatalf("verify device: expected 200, got %d (%v)", status, body)
	}

	// Same token, no re-login: the gate now passes.
	status, body = doJSON(t, app, fiber.MethodPost, "/api/transactions/deposit", userToken, fiber.Map{
		"amount":      10_000,
		"description": "first deposit",
	})
	if status != http.StatusOK {
		t.Fatalf("deposit after verification: expected 200, got %d (%v)", status, body)
	}
	tx, _ := body["transaction"].(map[string]any)
	if tx["balanceBefore"].(float64) != 0 || tx["balanceAfter"].(float64) != 10_000 {
		t.Fatalf("deposit: unexpected balances in %v", tx)
	}

	status, body = doJSON(t, app, fiber.MethodPost, "/api/transactions/withdraw", userToken, fiber.Map{
		"amount":      15_000,
		"description": "too much",
	})
	if status != http.StatusConflict {
		t.Fatalf("overdraft withdraw: expected 409, got %d (%v)", status, body)
	}

	status, body = doJSON(t, app, fiber.MethodPost, "/api/transactions/withdraw", userToken, fiber.Map{
		"amount":      2_500,
		"description": "partial",
	})
	if status != http.StatusOK {
		t.Fatalf("withdraw: expected 200, got %d (%v)", status, body)
	}
	tx, _ = body["transaction"].(map[string]any)
	if tx["balanceAfter"].(float64) != 7_500 {
		t.Fatalf("withdraw: unexpected balance in %v", tx)
	}

	status, body = doJSON(t, app, fiber.MethodGet, "/api/transactions/?page=1&limit=10", userToken, nil)
	if status != http.StatusOK {
		t.Fatalf("history: expected 200, got %d (%v)", status, body)
	}
	pagination, _ := body["pagination"].(map[string]any)
	if pagination["total"].(float64) != 2 || pagination["pages"].(float64) != 1 {
		t.Fatalf("history: unexpected pagination %v", pagination)
	}
	entries, _ := body["transactions"].([]any)
	if len(entries) != 2 {
		t.Fatalf("history: expected 2 entries, got %d", len(entries))
	}
}

func TestAdminSurfaceAndPrincipalSeparation(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, fiber.MethodPost, "/api/auth/register", "", fiber.Map{
		"firstName": "Jane",
		"lastName":  "Doe",
		"email":     "jane@example.com",
		"phone":     "+1234567890",
		"password":  "secret123",
		"deviceId":  "device-1",
	})
	if status != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%v)", status, body)
	}

	status, body = doJSON(t, app, fiber.MethodPost, "/api/auth/login", "", fiber.Map{
		"email":    "jane@example.com",
		"password": "secret123",
		"deviceId": "device-1",
	})
	if status != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", status)
	}
	userToken, _ := body["token"].(string)

	status, body = doJSON(t, app, fiber.MethodPost, "/api/auth/admin/login", "", fiber.Map{
		"email":    "root@example.com",
		"password": "admin-secret",
	})
	if status != http.StatusOK {
		t.Fatalf("admin login: expected 200, got %d", status)
	}
	adminToken, _ := body["token"].(string)

	// User tokens cannot reach the admin surface even with a verified device,
	// and admin tokens cannot transact.
	status, _ = doJSON(t, app, fiber.MethodGet, "/api/admin/users", userToken, nil)
	if status != http.StatusUnauthorized && status != http.StatusForbidden {
		t.Fatalf("user on admin route: expected 401/403, got %d", status)
	}
	status, _ = doJSON(t, app, fiber.MethodPost, "/api/transactions/deposit", adminToken, fiber.Map{
		"amount":      100,
		"description": "nope",
	})
	if status != http.StatusForbidden {
		t.Fatalf("admin on user route: expected 403, got %d", status)
	}

	status, body = doJSON(t, app, fiber.MethodGet, "/api/admin/users?search=jane", adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("admin list users: expected 200, got %d (%v)", status, body)
	}
	users, _ := body["users"].([]any)
	if len(users) != 1 {
		t.Fatalf("expected one matching user, got %d", len(users))
	}
	user, _ := users[0].(map[string]any)
	if _, leaked := user["password"]; leaked {
		t.Fatal("user listing must not expose password material")
	}

	status, body = doJSON(t, app, fiber.MethodGet, "/api/admin/dashboard/stats", adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("dashboard stats: expected 200, got %d (%v)", status, body)
	}
	if body["totalUsers"].(float64) != 1 || body["pendingDevices"].(float64) != 1 {
		t.Fatalf("unexpected stats: %v", body)
	}

	status, _ = doJSON(t, app, fiber.MethodPost, "/api/auth/admin/login", "", fiber.Map{
		"email":    "root@example.com",
		"password": "wrong",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("bad admin credentials: expected 401, got %d", status)
	}
}
