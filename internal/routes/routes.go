package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/custody/internal/auth"
	"github.com/congo-pay/custody/internal/config"
	"github.com/congo-pay/custody/internal/custody"
	"github.com/congo-pay/custody/internal/identity"
	"github.com/congo-pay/custody/internal/ledger"
	"github.com/congo-pay/custody/internal/metrics"
	"github.com/congo-pay/custody/internal/middleware"
	"github.com/congo-pay/custody/internal/notification"
	"github.com/congo-pay/custody/internal/payout"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Rail pays out withdrawals; nil settles every payout immediately.
	Rail payout.Rail
}

// Setup configures middlewares and all application routes.
func Setup(ctx context.Context, app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Metrics())
	if d.Cfg.IsDev() {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	} else {
		app.Use(middleware.Audit(d.Logger))
	}

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	// Backends
	var (
		ledgerBackend ledger.Ledger
		identityRepo  identity.Repository
		journal       notification.Journal
	)
	if d.DB != nil {
		pgLedger := ledger.NewPostgresLedger(d.DB)
		if err := pgLedger.Migrate(ctx); err != nil {
			return err
		}
		pgIdentity := identity.NewPostgresRepository(d.DB)
		if err := pgIdentity.Migrate(ctx); err != nil {
			return err
		}
		ledgerBackend, identityRepo = pgLedger, pgIdentity
	} else {
		ledgerBackend = ledger.NewInMemory()
		identityRepo = identity.NewMemoryRepository()
	}
	if d.Cache != nil {
		journal = notification.NewRedisJournal(d.Cache, d.Cfg.EventsStream)
	} else {
		journal = notification.NewMemoryJournal(0)
	}
	notifier := notification.Fanout{notification.NewLoggerNotifier(d.Logger), journal}

	// Services and handlers
	custodySvc, err := custody.NewService(ctx, d.Cfg.OwnerAccount, ledgerBackend, d.Rail, notifier, d.Logger)
	if err != nil {
		return err
	}
	identitySvc := identity.NewService(identityRepo)
	if d.Cfg.OwnerPIN != "" {
		if _, err := identitySvc.EnsureRegistered(ctx, identity.Credentials{Account: d.Cfg.OwnerAccount, PIN: d.Cfg.OwnerPIN}); err != nil {
			return fmt.Errorf("register owner credentials: %w", err)
		}
	}
	authSvc := auth.NewService(d.Cfg, identityRepo)

	custodyHandler := custody.NewHandler(custodySvc, journal)
	authHandler := auth.NewHandler(identitySvc, authSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterCustodyReadRoutes(api, custodyHandler)
	RegisterIdentityRoutes(api, identitySvc, d.Logger)

	jwtmw := middleware.JWTAuth(authSvc)
	RegisterAuthRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRatePerMinute), jwtmw)

	// Protected routes
	protected := api.Group("", jwtmw)
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterCustodyWriteRoutes(protected, custodyHandler)

	d.Logger.Info("custody ledger ready",
		slog.String("owner", custodySvc.Owner()),
		slog.Bool("postgres", d.DB != nil),
		slog.Bool("redis", d.Cache != nil),
	)
	return nil
}
