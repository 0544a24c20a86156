package constants

// Route constants
const (
	HealthRoute   = "/api/health"
	MetricsRoute  = "/metrics"
	MonitorRoute  = "/monitor"
	PaymentsRoute = "/payments"
	BillsRoute    = "/bills"
	AdminRoute    = "/admin"

	// Swagger UI path, without leading slash as the swagger middleware expects
	DocsPath = "docs"
	// OpenAPI document relative to the project root
	OpenAPIFile = "public/docs/v1/openapi.yml"
)
