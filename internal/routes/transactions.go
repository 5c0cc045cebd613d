package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ledgervault/ledgervault/internal/ledger"
)

// RegisterTransactionRoutes wires the balance ledger endpoints. The caller
// attaches the authentication gate to the group.
func RegisterTransactionRoutes(r fiber.Router, h *ledger.Handler) {
	r.Post("/deposit", h.Deposit)
	r.Post("/withdraw", h.Withdraw)
	r.Get("/", h.History)
}
