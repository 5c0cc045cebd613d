package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ledgervault/ledgervault/internal/account"
	"github.com/ledgervault/ledgervault/internal/token"
)

const principalKey = "principal"

// Principal is the authenticated identity derived from a bearer token.
type Principal struct {
	Admin    bool
	Email    string
	UserID   string
	DeviceID string
}

// PrincipalFrom extracts the principal stored by the Auth middleware.
func PrincipalFrom(c *fiber.Ctx) (Principal, bool) {
	p, ok := c.Locals(principalKey).(Principal)
	return p, ok
}

// Auth validates the bearer token and resolves the principal. Admin tokens
// bypass device trust entirely; user tokens additionally require an active
// account and a verified device, so a token obtained before verification
// works only once an admin has trusted the device.
func Auth(issuer *token.Issuer, accounts account.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "access denied, no token provided")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])

		claims, err := issuer.Verify(tokenStr)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		if claims.Admin {
			c.Locals(principalKey, Principal{Admin: true, Email: claims.Email})
			return c.Next()
		}

		user, err := accounts.FindByID(c.UserContext(), claims.UserID)
		if err != nil || !user.IsActive {
			return fiber.NewError(http.StatusUnauthorized, "invalid token or user not found")
		}

		if err := account.RequireVerifiedDevice(user, claims.DeviceID); err != nil {
			return fiber.NewError(http.StatusUnauthorized, "device not verified, please contact admin")
		}

		c.Locals(principalKey, Principal{
			Email:    user.Email,
			UserID:   user.ID,
			DeviceID: claims.DeviceID,
		})
		return c.Next()
	}
}

// RequireAdmin rejects non-admin principals.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := PrincipalFrom(c)
		if !ok || !p.Admin {
			return fiber.NewError(http.StatusForbidden, "admin privileges required")
		}
		return c.Next()
	}
}

// RequireUser rejects admin principals on user-only routes.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := PrincipalFrom(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, "access denied")
		}
		if p.Admin {
			return fiber.NewError(http.StatusForbidden, "admin access not allowed for this route")
		}
		return c.Next()
	}
}
