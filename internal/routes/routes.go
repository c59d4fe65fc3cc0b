package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mesa-pay/mesa_pay/internal/apptracker"
	"github.com/mesa-pay/mesa_pay/internal/config"
	"github.com/mesa-pay/mesa_pay/internal/ledger"
	"github.com/mesa-pay/mesa_pay/internal/middleware"
	"github.com/mesa-pay/mesa_pay/internal/notification"
	"github.com/mesa-pay/mesa_pay/internal/openpayments"
	"github.com/mesa-pay/mesa_pay/internal/settlement"
	"github.com/mesa-pay/mesa_pay/internal/transfer"
	"github.com/mesa-pay/mesa_pay/internal/wallet"
	"github.com/mesa-pay/mesa_pay/internal/webhook"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Tracker apptracker.AppTracker
	Logger  *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !isDev(d.Cfg.AppEnv) {
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
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	// Health
	RegisterHealthRoutes(app, d)

	// Storage
	var ledgerStore ledger.Store
	var walletRepo wallet.Repository
	var settlementStore settlement.Store
	if d.DB != nil {
		ledgerStore = ledger.NewPostgresStore(d.DB)
		walletRepo = wallet.NewPostgresRepository(d.DB)
		settlementStore = settlement.NewPostgresStore(d.DB)
	} else {
		ledgerStore = ledger.NewInMemory()
		walletRepo = wallet.NewMemoryRepository()
		settlementStore = settlement.NewInMemory()
	}

	// Protocol clients
	signer := openpayments.NewHTTPSigner(d.Cfg.SignatureURL)
	grants := openpayments.NewGrantClient(signer, d.Cfg.ClientKeyID, d.Cfg.ClientPrivateKey, d.Logger)
	interactions := openpayments.NewInteractionDriver(signer, d.Cfg.ClientKeyID, d.Cfg.ClientPrivateKey,
		d.Cfg.ContinueWait, d.Cfg.ContinueAttempts, d.Logger)
	resources := openpayments.NewResourceClient(signer, d.Cfg.ClientKeyID, d.Cfg.ClientPrivateKey, d.Logger)

	// Services and handlers
	walletSvc := wallet.NewService(walletRepo)
	notifier := notification.NewLoggerNotifier(d.Logger)

	transferSvc := transfer.NewService(transfer.Config{
		AuthServerURL:       d.Cfg.AuthServerURL,
		ResourceServerURL:   d.Cfg.ResourceServerURL,
		PaymentHost:         d.Cfg.PaymentHost,
		ClientWalletAddress: d.Cfg.ClientWalletAddress,
	}, grants, interactions, resources, d.Logger)

	dispatcher := webhook.NewDispatcher(walletSvc, resources, ledgerStore, settlementStore,
		d.Cfg.SettlementDelay, notifier, d.Tracker, d.Logger)

	walletHandler := wallet.NewHandler(walletSvc)
	transferHandler := transfer.NewHandler(transferSvc)
	webhookHandler := webhook.NewHandler(dispatcher)

	// The payment network calls back here; the endpoint stays outside the
	// idempotency middleware because event dedup happens at the ledger store.
	RegisterWebhookRoute(app, webhookHandler)

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

	if d.Cache != nil {
		api.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterWalletRoutes(api, walletHandler)
	RegisterTransferRoutes(api, transferHandler)

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
