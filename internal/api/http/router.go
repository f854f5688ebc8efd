package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/http/handlers"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Customers      *handlers.CustomersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/password/reset/request", cfg.Users.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Users.ConfirmPasswordReset)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())

	protected.Post("/auth/password/change", cfg.Users.ChangePassword)
	protected.Get("/metrics", auth.RequireAdmin(), cfg.Metrics.Snapshot)
	protected.Post("/admin/users", auth.RequireAdmin(), cfg.Users.CreateStaff)

	tickets := protected.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/status", cfg.Tickets.ChangeStatus)
	tickets.Post("/:id/assignments", cfg.Tickets.AssignUser)
	tickets.Delete("/:id/assignments/:userId", cfg.Tickets.UnassignUser)
	tickets.Post("/:id/tasks", cfg.Tickets.AddTask)
	tickets.Get("/:id/audit", cfg.Tickets.AuditTrail)

	tasks := protected.Group("/tasks")
	tasks.Post("/:id/complete", cfg.Tickets.CompleteTask)
	tasks.Delete("/:id", cfg.Tickets.DeleteTask)

	customers := protected.Group("/customers")
	customers.Post("", cfg.Customers.CreateCustomer)
	customers.Get("", cfg.Customers.ListCustomers)
	customers.Get("/:id", cfg.Customers.GetCustomer)
	customers.Patch("/:id", cfg.Customers.UpdateCustomer)
	customers.Post("/:id/deactivate", auth.RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin), cfg.Customers.DeactivateCustomer)
}
