package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Users          *handlers.UsersHandler
	Reports        *handlers.ReportsHandler
	AuthMiddleware fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/sign-up", cfg.Auth.SignUp)
	authGroup.Post("/sign-in", cfg.Auth.SignIn)
	authGroup.Post("/password/reset/request", cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Auth.ConfirmPasswordReset)
	authGroup.Post("/sign-out", cfg.AuthMiddleware, cfg.Auth.SignOut)
	authGroup.Post("/password/change", cfg.AuthMiddleware, cfg.Auth.ChangePassword)

	app.Get("/catalogue", cfg.Users.Catalogue)

	protected := app.Group("", cfg.AuthMiddleware)
	protected.Get("/me", cfg.Users.Me)

	tickets := protected.Group("/tickets")
	tickets.Get("/assignees", cfg.Tickets.ListAssignable)
	tickets.Post("/bulk", cfg.Tickets.BulkUpdate)
	tickets.Post("/", auth.RequireProfile(), cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Patch("/:id/priority", cfg.Tickets.UpdatePriority)
	tickets.Patch("/:id/assignee", cfg.Tickets.Assign)
	tickets.Get("/:id/comments", cfg.Tickets.ListComments)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)

	protected.Get("/files/:key", cfg.Tickets.DownloadFile)

	protected.Get("/dashboard/stats", cfg.Reports.DashboardStats)
	protected.Get("/dashboard/activity", cfg.Reports.Activity)
	protected.Get("/analytics", auth.RequireStaff(), cfg.Reports.Analytics)
	protected.Get("/metrics", auth.RequireAdmin(), cfg.Reports.Metrics)

	users := protected.Group("/users")
	users.Get("/", cfg.Users.List)
	users.Post("/", auth.RequireAdmin(), cfg.Users.Create)
	users.Get("/:id", cfg.Users.Get)
	users.Patch("/:id", cfg.Users.Update)
	users.Get("/:id/activity", cfg.Reports.UserActivity)
	users.Post("/:id/password-reset", cfg.Users.ResetPassword)
}
