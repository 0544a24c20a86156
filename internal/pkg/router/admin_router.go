package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicpay/civicpay/app/controllers"
	"github.com/civicpay/civicpay/internal/pkg/constants"
	"github.com/civicpay/civicpay/internal/pkg/middleware"
	"github.com/civicpay/civicpay/internal/pkg/usercontext"
)

type AdminRouter struct {
	deps Dependencies
}

func (h AdminRouter) InstallRouter(app *fiber.App) {
	if h.deps.Queue == nil || h.deps.Outbox == nil {
		return
	}

	admin := app.Group(constants.AdminRoute,
		middleware.RequireAuth,
		middleware.RequireRole(usercontext.RoleAdmin, usercontext.RoleSuperAdmin),
	)

	queueController := controllers.NewAdminQueueController(h.deps.Queue, h.deps.Outbox)
	admin.Get("/queue", queueController.HandleQueueStats)
	admin.Get("/outbox/:aggregateId", queueController.HandleOutboxEffects)
}

func NewAdminRouter(deps Dependencies) *AdminRouter {
	return &AdminRouter{deps: deps}
}
