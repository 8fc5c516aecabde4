package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/gridline-ai/gridline-backend/internal/api"
	"github.com/gridline-ai/gridline-backend/internal/config"
	"github.com/gridline-ai/gridline-backend/internal/services/auth"
	"github.com/gridline-ai/gridline-backend/internal/services/billing"
	"github.com/gridline-ai/gridline-backend/internal/services/database"
	"github.com/gridline-ai/gridline-backend/internal/services/entitlements"
	"github.com/gridline-ai/gridline-backend/internal/services/extraction"
	"github.com/gridline-ai/gridline-backend/internal/services/middleware"
	"github.com/gridline-ai/gridline-backend/internal/services/scheduler"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

// App represents a Gridline backend server instance.
type App struct {
	config *config.Config
	app    *fiber.App
	redis  *redis.Client
	db     *database.DB
}

// New creates a new App instance with the given configuration.
// The cfg parameter is required and must not be nil.
func New(cfg *config.Config) *App {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() to create config")
	}

	return &App{config: cfg}
}

// Run starts the server and blocks until shutdown.
func (a *App) Run() error {
	if err := a.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(a.config)

	port := a.config.Server.Port
	if port == "" {
		port = "8080"
	}
	listenAddr := ":" + port

	a.app = createFiberApp(a.config)

	// === Infrastructure Setup ===
	redisClient, err := createRedisClient(a.config)
	if err != nil {
		return fmt.Errorf("failed to create Redis client: %w", err)
	}
	a.redis = redisClient

	db, err := database.New(a.config.Database)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	a.db = db
	fiberlog.Infof("Database (%s) initialized successfully", db.DriverName())

	if a.redis != nil {
		defer func() {
			if err := a.redis.Close(); err != nil {
				fiberlog.Errorf("Failed to close Redis client: %v", err)
			}
		}()
	}
	defer func() {
		if err := a.db.Close(); err != nil {
			fiberlog.Errorf("Failed to close database connection: %v", err)
		}
	}()

	// === Services Initialization ===
	entitlementsSvc := entitlements.NewService(db.DB)
	if err := entitlementsSvc.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate accounts table: %w", err)
	}
	fiberlog.Info("Database migrations completed successfully")

	extractionSvc, err := extraction.New(&a.config.Extraction, a.redis)
	if err != nil {
		return fmt.Errorf("failed to initialize extraction service: %w", err)
	}

	authProvider := auth.NewClerkProvider(a.config.Auth.Clerk.SecretKey)
	checkoutSvc := billing.NewCheckoutService(a.config.Billing)
	reconciler := billing.NewReconciler(entitlementsSvc)
	guard := billing.NewRedisGuard(a.redis)

	// === Middleware Setup ===
	setupMiddleware(a.app, a.config)

	authMiddleware := middleware.NewAuthMiddleware(authProvider, entitlementsSvc, nil)

	// === Routes Setup ===
	setupRoutes(a.app, a.config, routeDeps{
		auth:         authMiddleware,
		entitlements: entitlementsSvc,
		extraction:   extractionSvc,
		checkout:     checkoutSvc,
		reconciler:   reconciler,
		guard:        guard,
		db:           db,
		redis:        a.redis,
	})

	a.app.Get("/", welcomeHandler())

	// === Background Sweep ===
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweep := scheduler.NewCycleResetScheduler(entitlementsSvc, a.config.SweepInterval())
	go sweep.Start(ctx)
	defer sweep.Stop()

	fmt.Printf("Gridline backend starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", a.config.Server.Environment)
	fmt.Printf("   Go version: %s\n", runtime.Version())

	// Graceful shutdown handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := a.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		fiberlog.Info("Context cancelled, starting shutdown...")
	}

	fiberlog.Info("Server shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	shutdownErrChan := make(chan error, 1)
	go func() {
		shutdownErrChan <- a.app.ShutdownWithTimeout(30 * time.Second)
	}()

	select {
	case err := <-shutdownErrChan:
		if err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		fiberlog.Info("Server shutdown completed successfully")
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timeout exceeded")
	}

	return nil
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := cfg.IsProduction()

	return fiber.New(fiber.Config{
		AppName:              "Gridline v1.0",
		EnablePrintRoutes:    !isProd,
		ReadTimeout:          2 * time.Minute,
		WriteTimeout:         2 * time.Minute,
		IdleTimeout:          5 * time.Minute,
		ReadBufferSize:       8192,
		WriteBufferSize:      8192,
		BodyLimit:            512 << 20,
		CompressedFileSuffix: ".gz",
		Prefork:              false,
		CaseSensitive:        true,
		StrictRouting:        false,
		Network:              "tcp",
		ServerHeader:         "Gridline",
	})
}

func setupMiddleware(app *fiber.App, cfg *config.Config) {
	isProd := cfg.IsProduction()

	// Recover middleware (must be first)
	app.Use(recover.New(recover.Config{
		EnableStackTrace: !isProd,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:               1000,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fmt.Errorf("1000 requests per minute")
		},
	}))

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	if isProd {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency} ${bytesSent}b\n",
			Output: os.Stdout,
		}))
	} else {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
			Output: os.Stdout,
		}))
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, User-Agent",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
	}))

	// Profiler (dev only)
	if !isProd {
		app.Use(pprof.New())
	}
}

type routeDeps struct {
	auth         *middleware.AuthMiddleware
	entitlements *entitlements.Service
	extraction   *extraction.Service
	checkout     *billing.CheckoutService
	reconciler   *billing.Reconciler
	guard        billing.Guard
	db           *database.DB
	redis        *redis.Client
}

func setupRoutes(app *fiber.App, cfg *config.Config, deps routeDeps) {
	healthHandler := api.NewHealthHandler(deps.db, deps.redis)
	app.Get("/health", healthHandler.HealthCheck)

	webhookHandler := api.NewPaymentWebhookHandler(cfg.Billing.WebhookSecret, deps.guard, deps.reconciler)
	app.Post("/webhooks/payments", webhookHandler.HandleWebhook)

	cronHandler := api.NewCronHandler(cfg.Billing.CronSecret, deps.entitlements)
	app.Post("/internal/cron/cycle-reset", cronHandler.TriggerCycleReset)

	convertHandler := api.NewConvertHandler(deps.extraction, deps.entitlements)
	creditsHandler := api.NewCreditsHandler(deps.entitlements)
	checkoutHandler := api.NewCheckoutHandler(deps.checkout)

	v1 := app.Group("/api/v1")
	v1.Use(deps.auth.RequireAuth())

	v1.Post("/convert", convertHandler.Convert)
	v1.Get("/credits/balance", creditsHandler.GetBalance)
	v1.Post("/credits/quote", creditsHandler.Quote)
	v1.Post("/checkout", checkoutHandler.CreateSession)
}

func setupLogLevel(cfg *config.Config) {
	logLevel := cfg.GetNormalizedLogLevel()

	switch logLevel {
	case "trace":
		fiberlog.SetLevel(fiberlog.LevelTrace)
	case "debug":
		fiberlog.SetLevel(fiberlog.LevelDebug)
	case "info":
		fiberlog.SetLevel(fiberlog.LevelInfo)
	case "warn", "warning":
		fiberlog.SetLevel(fiberlog.LevelWarn)
	case "error":
		fiberlog.SetLevel(fiberlog.LevelError)
	case "fatal":
		fiberlog.SetLevel(fiberlog.LevelFatal)
	case "panic":
		fiberlog.SetLevel(fiberlog.LevelPanic)
	default:
		fiberlog.SetLevel(fiberlog.LevelInfo)
		fiberlog.Warnf("Unknown log level '%s', defaulting to 'info'", logLevel)
	}

	fiberlog.Infof("Log level set to: %s", logLevel)
}

func createRedisClient(cfg *config.Config) (*redis.Client, error) {
	redisURL := cfg.Redis.URL
	if redisURL == "" {
		fiberlog.Info("Redis not configured - idempotency guard and extraction cache disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = 50
	opt.MinIdleConns = 10
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.ConnMaxLifetime = 30 * time.Minute
	opt.DialTimeout = 10 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.MaxRetries = 3
	opt.MinRetryBackoff = 8 * time.Millisecond
	opt.MaxRetryBackoff = 512 * time.Millisecond

	client := redis.NewClient(opt)

	return testRedisConnectionWithRetry(client)
}

func testRedisConnectionWithRetry(client *redis.Client) (*redis.Client, error) {
	const maxAttempts = 3
	const baseDelay = 1 * time.Second

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()

		if err == nil {
			fiberlog.Infof("Redis connection established successfully (attempt %d/%d)", attempt, maxAttempts)
			return client, nil
		}

		fiberlog.Warnf("Redis connection failed (attempt %d/%d): %v", attempt, maxAttempts, err)

		if attempt < maxAttempts {
			delay := time.Duration(attempt) * baseDelay
			fiberlog.Infof("Retrying Redis connection in %v...", delay)
			time.Sleep(delay)
		}
	}

	if err := client.Close(); err != nil {
		fiberlog.Errorf("Failed to close Redis client after connection failures: %v", err)
	}

	return nil, fmt.Errorf("failed to connect to Redis after %d attempts", maxAttempts)
}

func welcomeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":    "Welcome to Gridline!",
			"version":    "1.0.0",
			"go_version": runtime.Version(),
			"status":     "running",
			"endpoints": fiber.Map{
				"convert":  "/api/v1/convert",
				"balance":  "/api/v1/credits/balance",
				"quote":    "/api/v1/credits/quote",
				"checkout": "/api/v1/checkout",
				"webhooks": "/webhooks/payments",
				"health":   "/health",
			},
		})
	}
}
