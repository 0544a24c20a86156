package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicpay/civicpay/app/controllers"
	"github.com/civicpay/civicpay/app/repository"
	"github.com/civicpay/civicpay/internal/pkg/middleware"
	"github.com/civicpay/civicpay/internal/pkg/payments"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies carries everything the routers hand to controllers
type Dependencies struct {
	Payments  *payments.Service
	JWTSecret []byte

	// LimiterStorage backs the rate limiter; nil keeps counters in memory
	LimiterStorage fiber.Storage

	HealthChecks map[string]controllers.HealthCheck

	// MetricsUsers guards /metrics with basic auth; the route is not registered when empty
	MetricsUsers map[string]string

	// Queue and Outbox feed the admin endpoints, which are skipped when either is nil
	Queue  controllers.QueueStats
	Outbox repository.OutboxRepository
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// The user context has to be resolved before any group checks roles.
	app.Use(middleware.UserContextMiddleware(deps.JWTSecret))

	setup(app, NewApiRouter(deps), NewAdminRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
