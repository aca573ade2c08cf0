package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/casedesk/case-dispatch/internal/api/http/handlers"
	"github.com/casedesk/case-dispatch/internal/auth"
	"github.com/casedesk/case-dispatch/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Cases          *handlers.CasesHandler
	Agents         *handlers.AgentsHandler
	Queues         *handlers.QueuesHandler
	Sla            *handlers.SlaHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	supervisor := auth.RequireRole(domain.RoleSupervisor, domain.RoleSystem)
	anyone := auth.RequireRole(domain.RoleAgent, domain.RoleSupervisor, domain.RoleSystem)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/health/metrics", supervisor, cfg.Health.Metrics)

	cases := protected.Group("/cases")
	cases.Post("/", supervisor, cfg.Cases.Intake)
	cases.Get("/:id", anyone, cfg.Cases.GetCase)
	cases.Post("/:id/respond", anyone, cfg.Cases.RecordFirstResponse)
	cases.Post("/:id/resolve", anyone, cfg.Cases.Resolve)
	cases.Post("/:id/status", anyone, cfg.Cases.UpdateStatus)

	agents := protected.Group("/agents")
	agents.Get("/available", supervisor, cfg.Agents.Available)
	agents.Put("/:id", supervisor, cfg.Agents.Upsert)
	agents.Post("/:id/next-case", auth.RequireAgentSelfOr("id", domain.RoleSupervisor), cfg.Agents.NextCase)
	agents.Post("/:id/status", auth.RequireAgentSelfOr("id", domain.RoleSupervisor, domain.RoleSystem), cfg.Agents.SetStatus)
	agents.Get("/:id/workload", auth.RequireAgentSelfOr("id", domain.RoleSupervisor, domain.RoleSystem), cfg.Agents.Workload)

	queues := protected.Group("/queues")
	queues.Get("/:type/depth", anyone, cfg.Queues.Depth)
	queues.Get("/:type/metrics", anyone, cfg.Queues.Metrics)
	queues.Post("/redistribute", supervisor, cfg.Queues.Redistribute)

	sla := protected.Group("/sla")
	sla.Get("/metrics", supervisor, cfg.Sla.Metrics)
	sla.Get("/breached", anyone, cfg.Sla.Breached)
	sla.Get("/approaching-breach", anyone, cfg.Sla.ApproachingBreach)
	sla.Post("/sweep", supervisor, cfg.Sla.Sweep)
}
