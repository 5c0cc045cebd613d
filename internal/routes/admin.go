package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ledgervault/ledgervault/internal/admin"
)

// RegisterAdminRoutes wires the admin oversight endpoints. The caller
// attaches the admin gate to the group.
func RegisterAdminRoutes(r fiber.Router, h *admin.Handler) {
	r.Get("/users", h.ListUsers)
	r.Get("/users/:userId", h.UserDetail)
	r.Post("/users/:userId/verify-device", h.VerifyDevice)
	r.Get("/dashboard/stats", h.Stats)
}
