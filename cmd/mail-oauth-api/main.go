package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/omoinjm/njmtech-mail-oauth-api/internal/handler"
	"github.com/omoinjm/njmtech-mail-oauth-api/internal/repository"
	"github.com/omoinjm/njmtech-mail-oauth-api/internal/service"
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/config"
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/crypto"
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/database"
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/events"
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/logger"
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/metrics"
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/middleware"
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/oauth"
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/response"
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/telemetry"
)

const serviceName = "mail-oauth-api"

func main() {
	godotenv.Load()

	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(serviceName, "info", cfg.Telemetry.Environment == "development")
	logger.Info().Msg("Starting Mail OAuth API")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tel, err := telemetry.Init(ctx, &telemetry.Config{
		ServiceName:  serviceName,
		CollectorURL: cfg.Telemetry.CollectorURL,
		Environment:  cfg.Telemetry.Environment,
		Enabled:      cfg.Telemetry.Enabled,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer tel.Shutdown(context.Background())

	pool, err := database.NewPool(ctx, &database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	cipher, err := crypto.NewCipher(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid encryption key")
	}

	var states oauth.StateStore
	if cfg.Redis.Host != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		states = oauth.NewRedisStateStore(rdb)
	} else {
		logger.Warn().Msg("No Redis configured, using in-memory state store")
		states = oauth.NewMemoryStateStore()
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers)
		defer kp.Close()
		publisher = kp
	} else {
		logger.Warn().Msg("No Kafka brokers configured, events disabled")
	}

	registry := oauth.NewRegistry()
	registry.Register(oauth.NewClient(oauth.GoogleDescriptor(cfg.Providers.Google)))
	registry.Register(oauth.NewClient(oauth.MicrosoftDescriptor(cfg.Providers.Microsoft)))

	store := repository.NewAccountStore(pool, cipher)
	reconciler := service.NewTokenReconciler(store)
	authHandler := handler.NewAuthHandler(registry, states, reconciler, publisher)

	app := fiber.New(fiber.Config{
		AppName:      "Mail OAuth API",
		ErrorHandler: response.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.Logger())
	app.Use(metrics.Middleware("/health", "/metrics"))

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := pool.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unhealthy", "service": serviceName,
			})
		}
		return c.JSON(fiber.Map{"status": "healthy", "service": serviceName})
	})
	app.Get("/metrics", metrics.Handler())

	auth := app.Group("/auth", middleware.RateLimiter(middleware.RateLimitConfig{
		Max:      30,
		Duration: time.Minute,
	}))
	authHandler.RegisterRoutes(auth)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		if err := app.Listen(addr); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	logger.Info().Str("addr", addr).Msg("Mail OAuth API listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Mail OAuth API")
	if err := app.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}
}
