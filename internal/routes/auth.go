package routes

import (
	"crypto/subtle"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ledgervault/ledgervault/internal/account"
	"github.com/ledgervault/ledgervault/internal/config"
	"github.com/ledgervault/ledgervault/internal/token"
)

// RegisterAuthRoutes wires registration and login endpoints.
func RegisterAuthRoutes(r fiber.Router, h *account.Handler, cfg config.Config, issuer *token.Issuer, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/register", h.Register)
	if rateLimiter != nil {
		group.Post("/login", rateLimiter, h.Login)
		group.Post("/admin/login", rateLimiter, adminLogin(cfg, issuer))
	} else {
		group.Post("/login", h.Login)
		group.Post("/admin/login", adminLogin(cfg, issuer))
	}
}

// adminLogin checks the configured administrator credentials and issues an
// admin token. Admin principals live only in the token; there is no admin
// user row.
func adminLogin(cfg config.Config, issuer *token.Issuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
			return fiber.NewError(http.StatusUnauthorized, "admin login is not configured")
		}

		emailOK := subtle.ConstantTimeCompare([]byte(req.Email), []byte(cfg.AdminEmail)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(cfg.AdminPassword)) == 1
		if !emailOK || !passOK {
			return fiber.NewError(http.StatusUnauthorized, "invalid credentials")
		}

		signed, err := issuer.IssueAdmin(req.Email)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "login failed")
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"token":     signed,
			"expiresIn": int64(issuer.TTL().Seconds()),
		})
	}
}
