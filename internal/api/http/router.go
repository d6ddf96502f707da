package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/support-relay/relay/internal/api/http/handlers"
	"github.com/support-relay/relay/internal/auth"
	"github.com/support-relay/relay/internal/realtime"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Moderators     *handlers.ModeratorHandler
	Uploads        *handlers.UploadHandler
	Hub            *realtime.Hub
	AuthMiddleware *auth.AuthMiddleware
	UploadDir      string
	UploadPrefix   string
	PublicDir      string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	api := app.Group("/api")
	api.Post("/moderator/register", cfg.Moderators.Register)
	api.Post("/moderator/logout", cfg.AuthMiddleware.Handle, cfg.Moderators.Logout)

	api.Post("/tickets/new", cfg.Tickets.CreateTicket)
	api.Get("/tickets/status", cfg.Tickets.Status)

	moderated := api.Group("/tickets", cfg.AuthMiddleware.Handle)
	moderated.Get("", cfg.Tickets.ListTickets)
	moderated.Post("/claim", cfg.Tickets.Claim)
	moderated.Post("/close", cfg.Tickets.Close)

	if cfg.Uploads != nil {
		api.Post("/upload", cfg.Uploads.Upload)
	}

	if cfg.Hub != nil {
		app.Get("/ws", realtime.RequireUpgrade, cfg.Hub.Handler())
	}

	if cfg.UploadDir != "" && cfg.UploadPrefix != "" {
		app.Static(cfg.UploadPrefix, cfg.UploadDir, fiber.Static{MaxAge: 7 * 24 * 3600})
	}
	if cfg.PublicDir != "" {
		app.Static("/", cfg.PublicDir)
	}
}
