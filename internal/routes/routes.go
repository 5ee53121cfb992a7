package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sparkmeet/moderation-worker/internal/config"
	"github.com/sparkmeet/moderation-worker/internal/handlers"
	"github.com/sparkmeet/moderation-worker/internal/middleware"
)

// Setup mounts the worker's operational routes. Everything except health and
// metrics requires admin access.
func Setup(app *fiber.App, cfg *config.Config,
	healthHandler *handlers.HealthHandler, reviewHandler *handlers.ReviewHandler) {

	app.Get("/health", healthHandler.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	admin := app.Group("/admin", middleware.JWTProtected(cfg), middleware.AdminRequired(cfg))
	admin.Post("/reviews/:userId", reviewHandler.TriggerUserReview)
	admin.Get("/reviews/status", reviewHandler.SchedulerStatus)
}
