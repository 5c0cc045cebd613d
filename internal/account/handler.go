package account

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ledgervault/ledgervault/internal/metrics"
	"github.com/ledgervault/ledgervault/internal/token"
)

// Handler exposes registration and login endpoints.
type Handler struct {
	service  *Service
	issuer   *token.Issuer
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs an account HTTP handler.
func NewHandler(service *Service, issuer *token.Issuer, validate *validator.Validate, logger *slog.Logger) *Handler {
	return &Handler{service: service, issuer: issuer, validate: validate, logger: logger}
}

type registerRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required"`
	Password  string `json:"password" validate:"required,min=6"`
	DeviceID  string `json:"deviceId" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	DeviceID string `json:"deviceId" validate:"required"`
}

// DeviceView is the external projection of a device trust record.
type DeviceView struct {
	DeviceID   string     `json:"deviceId"`
	Verified   bool       `json:"verified"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
	LastLogin  *time.Time `json:"lastLogin,omitempty"`
}

// UserView is the external projection of a user; it never carries the
// password hash.
type UserView struct {
	ID        string       `json:"id"`
	FirstName string       `json:"firstName"`
	LastName  string       `json:"lastName"`
	Email     string       `json:"email"`
	Phone     string       `json:"phone"`
	Balance   int64        `json:"balance"`
	Devices   []DeviceView `json:"devices"`
	IsActive  bool         `json:"isActive"`
	CreatedAt time.Time    `json:"createdAt"`
}

// NewUserView projects a user for serialization.
func NewUserView(u User) UserView {
	devices := make([]DeviceView, 0, len(u.Devices))
	for _, d := range u.Devices {
		devices = append(devices, DeviceView{
			DeviceID:   d.DeviceID,
			Verified:   d.Verified,
			VerifiedAt: d.VerifiedAt,
			LastLogin:  d.LastLogin,
		})
	}
	return UserView{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
		Balance:   u.Balance,
		Devices:   devices,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

type loginResponse struct {
	Token          string   `json:"token"`
	ExpiresIn      int64    `json:"expiresIn"`
	DeviceVerified bool     `json:"deviceVerified"`
	User           UserView `json:"user"`
}

// Register handles user onboarding. The initial device starts unverified, so
// the account cannot transact until an admin trusts it.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	user, err := h.service.Register(c.UserContext(), RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
		DeviceID:  req.DeviceID,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			return fiber.NewError(http.StatusConflict, err.Error())
		}
		h.logger.Error("registration failed",
			slog.String("path", c.Path()),
			slog.Any("error", err))
		return fiber.NewError(http.StatusServiceUnavailable, "storage unavailable")
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "Registration successful. Please wait for device verification.",
		"userId":  user.ID,
	})
}

// Login verifies credentials and issues a bearer token. Logging in from an
// unverified device still succeeds; the deviceVerified flag tells the client
// the token cannot be used for transactions yet.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	user, deviceVerified, err := h.service.Authenticate(c.UserContext(), req.Email, req.Password, req.DeviceID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		case errors.Is(err, ErrInactive):
			metrics.LoginAttempts.WithLabelValues("inactive").Inc()
			return fiber.NewError(http.StatusForbidden, err.Error())
		default:
			metrics.LoginAttempts.WithLabelValues("error").Inc()
			h.logger.Error("login failed",
				slog.String("path", c.Path()),
				slog.Any("error", err))
			return fiber.NewError(http.StatusServiceUnavailable, "storage unavailable")
		}
	}

	signed, err := h.issuer.Issue(user.ID, req.DeviceID, user.Email)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "login failed")
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	return c.Status(http.StatusOK).JSON(loginResponse{
		Token:          signed,
		ExpiresIn:      int64(h.issuer.TTL().Seconds()),
		DeviceVerified: deviceVerified,
		User:           NewUserView(user),
	})
}
