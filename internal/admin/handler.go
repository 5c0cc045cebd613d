package admin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/ledgervault/ledgervault/internal/account"
	"github.com/ledgervault/ledgervault/internal/ledger"
)

// Handler exposes the admin oversight endpoints. All routes sit behind the
// admin gate.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler builds an admin HTTP handler.
func NewHandler(service *Service, validate *validator.Validate, logger *slog.Logger) *Handler {
	return &Handler{service: service, validate: validate, logger: logger}
}

// storeError logs the underlying storage failure with request context, then
// hides the detail from the caller.
func (h *Handler) storeError(c *fiber.Ctx, err error, message string) error {
	h.logger.Error("admin store failure",
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.Any("error", err))
	return fiber.NewError(http.StatusServiceUnavailable, message)
}

// ListUsers returns a page of user summaries, optionally filtered by search text.
func (h *Handler) ListUsers(c *fiber.Ctx) error {
	page := c.QueryInt("page", 0)
	pageSize := c.QueryInt("limit", 0)
	search := c.Query("search")

	result, err := h.service.ListUsers(c.UserContext(), page, pageSize, search)
	if err != nil {
		return h.storeError(c, err, "failed to fetch users")
	}

	views := make([]account.UserView, 0, len(result.Users))
	for _, u := range result.Users {
		views = append(views, account.NewUserView(u))
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"users": views,
		"pagination": fiber.Map{
			"page":  result.Page,
			"limit": result.PageSize,
			"total": result.Total,
			"pages": result.Pages,
		},
	})
}

// UserDetail returns one user together with their most recent transactions.
func (h *Handler) UserDetail(c *fiber.Ctx) error {
	userID := c.Params("userId")

	user, entries, err := h.service.UserDetail(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return h.storeError(c, err, "failed to fetch user details")
	}

	recent := make([]ledger.TransactionView, 0, len(entries))
	for _, t := range entries {
		recent = append(recent, ledger.NewTransactionView(t))
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"user":               account.NewUserView(user),
		"recentTransactions": recent,
	})
}

type verifyDeviceRequest struct {
	DeviceID string `json:"deviceId" validate:"required"`
}

// VerifyDevice grants trust to a user's device.
func (h *Handler) VerifyDevice(c *fiber.Ctx) error {
	// Params returns a string backed by fiber's reusable request buffer; it
	// must be copied before it outlives the request (it is stored as a map
	// key by the in-memory repository).
	userID := utils.CopyString(c.Params("userId"))

	var req verifyDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	user, err := h.service.VerifyDevice(c.UserContext(), userID, req.DeviceID)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, account.ErrDeviceNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		default:
			return h.storeError(c, err, "failed to verify device")
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Device verified successfully",
		"user":    account.NewUserView(user),
	})
}

// Stats returns the dashboard aggregates.
func (h *Handler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return h.storeError(c, err, "failed to fetch dashboard stats")
	}

	recent := make([]fiber.Map, 0, len(stats.RecentTransactions))
	for _, t := range stats.RecentTransactions {
		recent = append(recent, fiber.Map{
			"id":          t.ID,
			"type":        t.Type,
			"amount":      t.Amount,
			"description": t.Description,
			"status":      t.Status,
			"createdAt":   t.CreatedAt,
			"user": fiber.Map{
				"firstName": t.UserFirstName,
				"lastName":  t.UserLastName,
				"email":     t.UserEmail,
			},
		})
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"totalUsers":         stats.TotalUsers,
		"activeUsers":        stats.ActiveUsers,
		"pendingDevices":     stats.PendingDevices,
		"totalBalance":       stats.TotalBalance,
		"recentTransactions": recent,
	})
}
