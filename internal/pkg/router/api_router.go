package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"

	"github.com/civicpay/civicpay/app/controllers"
	"github.com/civicpay/civicpay/internal/pkg/constants"
	"github.com/civicpay/civicpay/internal/pkg/metrics"
	"github.com/civicpay/civicpay/internal/pkg/middleware"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	if len(h.deps.MetricsUsers) > 0 {
		app.Get(constants.MetricsRoute, basicauth.New(basicauth.Config{
			Users: h.deps.MetricsUsers,
		}), adaptor.HTTPHandler(metrics.Handler()))
	}

	health := controllers.NewHealthController(h.deps.HealthChecks)
	app.Get(constants.HealthRoute, health.HandleHealth)

	paymentController := controllers.NewPaymentController(h.deps.Payments)
	billController := controllers.NewBillController(h.deps.Payments)

	// The gateway retries webhooks on its own schedule, so they bypass the limiter.
	app.Post(constants.PaymentsRoute+"/webhook", paymentController.HandleWebhook)

	limit := newLimiter(h.deps.LimiterStorage)

	payments := app.Group(constants.PaymentsRoute)
	payments.Post("/orders", limit, middleware.RequireAuth, paymentController.HandleCreateOrder)
	payments.Post("/verify", limit, middleware.RequireAuth, paymentController.HandleVerifyPayment)
	payments.Get("/", limit, middleware.RequireAuth, paymentController.HandleListPayments)
	payments.Get("/:paymentId", limit, middleware.RequireAuth, paymentController.HandleGetPayment)

	app.Get(constants.BillsRoute, limit, middleware.RequireAuth, billController.HandleListBills)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
