package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bookcircle/backend/internal/config"
	"github.com/bookcircle/backend/internal/db"
	"github.com/bookcircle/backend/internal/events"
	apphttp "github.com/bookcircle/backend/internal/http"
	"github.com/bookcircle/backend/internal/http/handlers"
	"github.com/bookcircle/backend/internal/repositories"
	"github.com/bookcircle/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Storage + events
	store := repositories.NewStore(pool, log)
	bus := events.NewRedisBus(rdb, log)

	// Services
	txService := services.NewTransactionService(store, bus, cfg, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(store.Users(), cfg, log)
	userHandler := handlers.NewUserHandler(store.Users(), log)
	offerHandler := handlers.NewOfferHandler(repositories.NewBookOfferRepo(pool), log)
	txHandler := handlers.NewTransactionHandler(txService, log)
	wsHub := handlers.NewWSHub(cfg, bus, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, userHandler, offerHandler, txHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
