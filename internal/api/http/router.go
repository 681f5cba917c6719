package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Catalog        *handlers.CatalogHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
	// MetricsPath is left unregistered when empty.
	MetricsPath string
	Registry    prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.MetricsPath != "" && cfg.Registry != nil {
		app.Get(cfg.MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	protected := api.Group("", cfg.AuthMiddleware.Handle)
	staff := auth.RequireStaff()
	admin := auth.RequireAdmin()

	protected.Post("/auth/password", cfg.Users.ChangePassword)
	protected.Get("/me", cfg.Users.Me)
	protected.Patch("/me", cfg.Users.UpdateProfile)

	protected.Get("/users", staff, cfg.Users.ListUsers)
	protected.Post("/users", admin, cfg.Users.CreateUser)
	protected.Get("/users/:id", cfg.Users.GetUser)

	protected.Get("/dashboard", cfg.Notifications.Dashboard)

	protected.Get("/tickets", cfg.Tickets.ListTickets)
	protected.Post("/tickets", cfg.Tickets.CreateTicket)
	protected.Get("/tickets/:id", cfg.Tickets.GetTicket)
	protected.Patch("/tickets/:id", staff, cfg.Tickets.UpdateTicket)
	protected.Delete("/tickets/:id", admin, cfg.Tickets.DeleteTicket)
	protected.Get("/tickets/:id/history", staff, cfg.Tickets.History)
	protected.Post("/tickets/:id/assign", staff, cfg.Tickets.AssignTicket)
	protected.Post("/tickets/:id/escalate", staff, cfg.Tickets.EscalateTicket)
	protected.Post("/tickets/:id/comments", cfg.Tickets.AddComment)
	protected.Post("/tickets/:id/attachments", cfg.Tickets.UploadAttachment)
	protected.Get("/attachments/:id/download", cfg.Tickets.DownloadAttachment)

	protected.Get("/categories", cfg.Catalog.ListCategories)
	protected.Post("/categories", admin, cfg.Catalog.CreateCategory)
	protected.Put("/categories/:id", admin, cfg.Catalog.UpdateCategory)
	protected.Delete("/categories/:id", admin, cfg.Catalog.DeleteCategory)

	rules := protected.Group("/trigger-rules", admin)
	rules.Get("", cfg.Catalog.ListRules)
	rules.Post("", cfg.Catalog.CreateRule)
	rules.Get("/:id", cfg.Catalog.GetRule)
	rules.Put("/:id", cfg.Catalog.UpdateRule)
	rules.Post("/:id/toggle", cfg.Catalog.ToggleRule)
	rules.Delete("/:id", cfg.Catalog.DeleteRule)

	protected.Get("/notifications", cfg.Notifications.List)
	protected.Get("/notifications/unread-count", cfg.Notifications.UnreadCount)
	protected.Post("/notifications/read-all", cfg.Notifications.MarkAllRead)
	protected.Post("/notifications/:id/read", cfg.Notifications.MarkRead)
}
