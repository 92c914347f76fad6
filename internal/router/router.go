package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/evalia-edu/evalia-api/internal/config"
	"github.com/evalia-edu/evalia-api/internal/handler"
	"github.com/evalia-edu/evalia-api/internal/middleware"
	"github.com/evalia-edu/evalia-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ExerciseHandler   *handler.ExerciseHandler
	SubmissionHandler *handler.SubmissionHandler
	ProgressHandler   *handler.ProgressHandler
	LiveFeedHandler   *handler.LiveFeedHandler
	SeedHandler       *handler.SeedHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health, metrics and tooling
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(api.Group("/seed"))
	}

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Exercise catalog
	if deps.ExerciseHandler != nil {
		exercises := app.Group("/api/v2/exercises", jwtMiddleware)
		deps.ExerciseHandler.Register(exercises)
	}

	// Submissions and judging. Judging runs code, so submissions are rate
	// limited per user on top of authentication.
	if deps.SubmissionHandler != nil {
		submissions := app.Group("/api/v2/submissions", jwtMiddleware, middleware.RateLimit("submissions", 30, time.Minute))
		deps.SubmissionHandler.Register(submissions)
	}

	// Student progress
	if deps.ProgressHandler != nil {
		progress := app.Group("/api/v2/progress", jwtMiddleware)
		deps.ProgressHandler.Register(progress)
	}

	// Live verdict feed
	if deps.LiveFeedHandler != nil {
		feed := app.Group("/api/v2/feed", jwtMiddleware)
		deps.LiveFeedHandler.Register(feed)
	}
}
