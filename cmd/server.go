package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/config"
	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/Abraxas-365/sentinel/pkg/logx"
	"github.com/Abraxas-365/sentinel/pkg/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// 1. Logger and configuration
	logx.SetDefaultLogger(logx.NewLogger(logx.LoadFromEnv()))
	defer func() { _ = logx.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logx.Fatalf("Invalid configuration: %v", err)
	}
	logx.Info("🚀 Starting Sentinel auth server...")

	// 2. Dependency container
	container := NewContainer(cfg)
	defer container.Cleanup()

	// 3. Fiber app
	app := fiber.New(fiber.Config{
		AppName:               "Sentinel",
		DisableStartupMessage: true,
		ErrorHandler:          errx.FiberErrorHandler(cfg.Server.Debug),
		BodyLimit:             cfg.Server.BodyLimit,
		IdleTimeout:           120 * time.Second,
		ProxyHeader:           fiber.HeaderXForwardedFor,
	})

	// 4. Global middleware
	app.Use(recover.New(recover.Config{EnableStackTrace: cfg.Server.Debug}))
	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))
	app.Use(requestContext)
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-Refresh-Token",
		AllowMethods:  "GET, POST, PUT, DELETE, OPTIONS",
		ExposeHeaders: "X-Request-ID, X-Refresh-Required",
	}))
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${respHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(metrics.Middleware(container.Metrics, cfg.Metrics.Path))

	// 5. Health and metrics
	app.Get("/health", healthCheckHandler(container))
	if cfg.Metrics.Enabled {
		app.Get(cfg.Metrics.Path, metrics.Handler(prometheus.DefaultGatherer))
	}

	// 6. Routes
	container.IAM.RegisterRoutes(app)
	logx.Info("✓ Auth routes registered: /auth/*, /oauth/*, /api/v1/*")

	// 7. 404 handler
	app.Use(notFoundHandler)

	// 8. Background services and server
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	container.StartBackgroundServices(ctx)

	go func() {
		logx.Infof("🚀 Server listening on port %s", cfg.Server.Port)
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			logx.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	logx.Info("🛑 Shutting down gracefully...")
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		logx.Errorf("Server forced to shutdown: %v", err)
	}
	logx.Info("✅ Server exited successfully")
}

// requestContext copies the request id into the user context so that
// logx.WithContext picks it up
func requestContext(c *fiber.Ctx) error {
	id := c.GetRespHeader(fiber.HeaderXRequestID)
	c.SetUserContext(context.WithValue(c.UserContext(), kernel.RequestIDKey, id))
	return c.Next()
}

func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{"status": "healthy", "service": "sentinel"}
		status := fiber.StatusOK
		for name, err := range container.Ping(c.UserContext()) {
			if err != nil {
				health[name] = "unhealthy"
				health["status"] = "degraded"
				status = fiber.StatusServiceUnavailable
				logx.WithError(err).WithField("dependency", name).Warn("Health check failed")
				continue
			}
			health[name] = "healthy"
		}
		return c.Status(status).JSON(health)
	}
}

func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"code":       "NOT_FOUND",
		"message":    "The requested endpoint does not exist",
		"path":       c.Path(),
		"method":     c.Method(),
		"request_id": c.GetRespHeader(fiber.HeaderXRequestID),
	})
}
