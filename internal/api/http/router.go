package http

import (
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NewApp builds the fiber app with the project's JSON codec.
func NewApp(name string) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               name,
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})
}

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Settings       *handlers.SettingsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Snapshot)

	app.Post("/auth/token", cfg.Auth.Token)

	guilds := app.Group("/guilds/:guildID", cfg.AuthMiddleware.Handle)
	read := auth.RequireRole(auth.RoleAdmin, auth.RoleViewer)
	admin := auth.RequireRole(auth.RoleAdmin)

	guilds.Get("/tickets", read, cfg.Tickets.ListTickets)
	guilds.Get("/tickets/users/:userID", read, cfg.Tickets.FindUserTicket)
	guilds.Post("/tickets/close-all", admin, cfg.Tickets.CloseAll)
	guilds.Post("/tickets/:channelID/close", admin, cfg.Tickets.CloseTicket)

	guilds.Get("/settings", read, cfg.Settings.Get)
	guilds.Patch("/settings", admin, cfg.Settings.Update)
}
