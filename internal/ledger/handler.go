package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ledgervault/ledgervault/internal/middleware"
)

// Handler exposes deposit, withdrawal and history endpoints. All routes sit
// behind the authentication gate, so a principal is always present.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(service *Service, validate *validator.Validate, logger *slog.Logger) *Handler {
	return &Handler{service: service, validate: validate, logger: logger}
}

type postingRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"required"`
}

// TransactionView is the external projection of a ledger entry. Amounts are
// integer minor units.
type TransactionView struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Amount        int64     `json:"amount"`
	BalanceBefore int64     `json:"balanceBefore"`
	BalanceAfter  int64     `json:"balanceAfter"`
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewTransactionView projects a ledger entry for serialization.
func NewTransactionView(t Transaction) TransactionView {
	return TransactionView{
		ID:            t.ID,
		Type:          t.Type,
		Amount:        t.Amount,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		Description:   t.Description,
		Status:        t.Status,
		CreatedAt:     t.CreatedAt,
	}
}

// Deposit credits the authenticated user's balance.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	return h.post(c, "Deposit successful", h.service.Deposit)
}

// Withdraw debits the authenticated user's balance.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	return h.post(c, "Withdrawal successful", h.service.Withdraw)
}

// History returns a page of the user's transactions, newest first. Invalid
// paging values silently fall back to the defaults.
func (h *Handler) History(c *fiber.Ctx) error {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "access denied")
	}

	page := c.QueryInt("page", 0)
	pageSize := c.QueryInt("limit", 0)

	history, err := h.service.History(c.UserContext(), principal.UserID, page, pageSize)
	if err != nil {
		return h.storeError(c, err)
	}

	views := make([]TransactionView, 0, len(history.Transactions))
	for _, t := range history.Transactions {
		views = append(views, NewTransactionView(t))
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"transactions": views,
		"pagination": fiber.Map{
			"page":  history.Page,
			"limit": history.PageSize,
			"total": history.Total,
			"pages": history.Pages,
		},
	})
}

type postingFunc func(ctx context.Context, userID string, amount int64, description string) (Transaction, error)

func (h *Handler) post(c *fiber.Ctx, message string, fn postingFunc) error {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "access denied")
	}

	var req postingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	entry, err := fn(c.UserContext(), principal.UserID, req.Amount, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrInsufficientFunds):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrUserNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrUserInactive):
			return fiber.NewError(http.StatusForbidden, err.Error())
		default:
			return h.storeError(c, err)
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":     message,
		"transaction": NewTransactionView(entry),
	})
}

// storeError logs the underlying storage failure with request context, then
// hides the detail from the caller.
func (h *Handler) storeError(c *fiber.Ctx, err error) error {
	h.logger.Error("ledger store failure",
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.Any("error", err))
	return fiber.NewError(http.StatusServiceUnavailable, "storage unavailable")
}
