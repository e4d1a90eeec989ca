package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/deskflow/helpdesk/internal/api/http/handlers"
	"github.com/deskflow/helpdesk/internal/auth"
	"github.com/deskflow/helpdesk/internal/observability"
)

// RouteConfig bundles dependencies for route registration. A nil
// AuthMiddleware leaves the API group open.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Contacts       *handlers.ContactsHandler
	Metrics        *observability.Metrics
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	var guards []fiber.Handler
	if cfg.AuthMiddleware != nil {
		guards = append(guards, cfg.AuthMiddleware.Handle)
	}
	api := app.Group("/api", guards...)

	tickets := api.Group("/tickets")
	tickets.Get("/", cfg.Tickets.List)
	tickets.Get("/export", cfg.Tickets.Export)
	tickets.Post("/import/preview", cfg.Tickets.PreviewImport)
	tickets.Post("/import/confirm", cfg.Tickets.ConfirmImport)

	contacts := api.Group("/contacts")
	contacts.Get("/export", cfg.Contacts.Export)
	contacts.Post("/import/preview", cfg.Contacts.PreviewImport)
	contacts.Post("/import/confirm", cfg.Contacts.ConfirmImport)
}
