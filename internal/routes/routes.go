package routes

import (
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ledgervault/ledgervault/internal/account"
	"github.com/ledgervault/ledgervault/internal/admin"
	"github.com/ledgervault/ledgervault/internal/config"
	"github.com/ledgervault/ledgervault/internal/ledger"
	"github.com/ledgervault/ledgervault/internal/middleware"
	"github.com/ledgervault/ledgervault/internal/notification"
	"github.com/ledgervault/ledgervault/internal/token"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	// Health and metrics
	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Stores: Postgres when configured, in-memory fallback for development.
	var (
		accountRepo account.Repository
		ledgerStore ledger.Store
	)
	if d.DB != nil {
		accountRepo = account.NewPostgresRepository(d.DB)
		ledgerStore = ledger.NewPostgresStore(d.DB)
	} else {
		memRepo := account.NewMemoryRepository()
		accountRepo = memRepo
		ledgerStore = ledger.NewInMemoryWithSink(memRepo)
	}

	// Services and handlers
	validate := validator.New()
	issuer := token.NewIssuer(d.Cfg.JWTSecret, d.Cfg.TokenTTL)
	notifier := notification.NewLoggerNotifier(d.Logger)

	accountSvc := account.NewService(accountRepo, ledgerStore, notifier)
	ledgerSvc := ledger.NewService(ledgerStore)
	adminSvc := admin.NewService(accountRepo, accountSvc, ledgerStore)

	accountHandler := account.NewHandler(accountSvc, issuer, validate, d.Logger)
	ledgerHandler := ledger.NewHandler(ledgerSvc, validate, d.Logger)
	adminHandler := admin.NewHandler(adminSvc, validate, d.Logger)

	api := app.Group("/api")

	// Public routes
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	RegisterAuthRoutes(api, accountHandler, d.Cfg, issuer, rateLimiter)

	// Authenticated routes
	authGate := middleware.Auth(issuer, accountRepo)

	transactions := api.Group("/transactions", authGate, middleware.RequireUser())
	if d.Cache != nil {
		transactions.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterTransactionRoutes(transactions, ledgerHandler)

	adminGroup := api.Group("/admin", authGate, middleware.RequireAdmin())
	RegisterAdminRoutes(adminGroup, adminHandler)

	return nil
}
