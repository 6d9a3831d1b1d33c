package http

import (
	"time"

	"github.com/bookcircle/backend/internal/config"
	"github.com/bookcircle/backend/internal/http/handlers"
	"github.com/bookcircle/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	offerHandler *handlers.OfferHandler,
	txHandler *handlers.TransactionHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute))

	// Auth (public)
	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", userHandler.GetMe)
	protected.Post("/me/ping", userHandler.Ping)

	// Offers
	protected.Post("/offers", offerHandler.CreateOffer)
	protected.Get("/offers/mine", offerHandler.MyOffers)
	protected.Get("/offers/:id", offerHandler.GetOffer)

	// Exchange transactions
	protected.Post("/transactions", txHandler.CreateTransaction)
	protected.Get("/transactions", txHandler.ListTransactions)
	protected.Get("/transactions/:id", txHandler.GetTransaction)
	protected.Post("/transactions/:id/accept", txHandler.AcceptTransaction)
	protected.Post("/transactions/:id/reject", txHandler.RejectTransaction)
	protected.Post("/transactions/:id/propose-time", txHandler.ProposeTime)
	protected.Post("/transactions/:id/confirm-time", txHandler.ConfirmTime)
	protected.Post("/transactions/:id/confirm-handover", txHandler.ConfirmHandover)
	protected.Post("/transactions/:id/cancel", txHandler.CancelTransaction)
	protected.Get("/transactions/:id/events", txHandler.GetTransactionEvents)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
