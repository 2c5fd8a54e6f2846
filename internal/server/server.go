package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/config"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/handlers"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/routes"
	"go.uber.org/zap"
)

// New initializes the Fiber application with config, middlewares, and routes.
func New(cfg *config.Config, h *handlers.Handler, logger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.App.ReadTimeout.Std(),
		WriteTimeout: cfg.App.WriteTimeout.Std(),
		IdleTimeout:  cfg.App.IdleTimeout.Std(),
	})

	app.Use(cors.New(cors.Config{
		AllowCredentials: true,
		AllowOriginsFunc: func(string) bool { return true },
	}))
	app.Use(securityHeaders())
	app.Use(zapLoggerMiddleware(logger))

	routes.Setup(app, h)

	return app
}

// securityHeaders stamps the hardening headers onto every response.
func securityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		c.Set("Strict-Transport-Security", "max-age=63072000; includeSubdomains")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Content-Security-Policy", "script-src 'self'; object-src 'self'")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Cache-Control", "no-cache")
		return err
	}
}

// zapLoggerMiddleware logs incoming HTTP requests using Zap.
func zapLoggerMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)
		status := c.Response().StatusCode()

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		}

		if err != nil {
			logger.Error("HTTP Request Error", append(fields, zap.Error(err))...)
			return err
		}

		logger.Info("HTTP Request", fields...)
		return nil
	}
}
