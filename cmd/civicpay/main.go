package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/civicpay/civicpay/app/controllers"
	"github.com/civicpay/civicpay/app/repository"
	"github.com/civicpay/civicpay/internal/pkg/cache"
	"github.com/civicpay/civicpay/internal/pkg/constants"
	"github.com/civicpay/civicpay/internal/pkg/database"
	"github.com/civicpay/civicpay/internal/pkg/env"
	"github.com/civicpay/civicpay/internal/pkg/gateway"
	"github.com/civicpay/civicpay/internal/pkg/jobqueue"
	"github.com/civicpay/civicpay/internal/pkg/mail"
	"github.com/civicpay/civicpay/internal/pkg/middleware"
	"github.com/civicpay/civicpay/internal/pkg/outbox"
	"github.com/civicpay/civicpay/internal/pkg/payments"
	"github.com/civicpay/civicpay/internal/pkg/router"
	"github.com/civicpay/civicpay/internal/pkg/s3archive"
)

// Application bundles the HTTP server with the background workers it depends on
type Application struct {
	App      *fiber.App
	Manager  *jobqueue.Manager
	closers  []func() error
	basePath string
}

func main() {
	application := NewApplication()
	application.Manager.Start()

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
		if err := application.App.Listen(addr); err != nil {
			log.Fatalf("[Server] %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	application.Shutdown(10 * time.Second)
}

func NewApplication() *Application {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	paymentsCfg, err := payments.LoadConfig()
	if err != nil {
		log.Fatalf("[Config] %v", err)
	}
	gatewayCfg := gateway.LoadConfig()
	if err := gatewayCfg.Validate(); err != nil {
		log.Fatalf("[Config] %v", err)
	}
	jwtSecret, err := middleware.LoadJWTSecret()
	if err != nil {
		log.Fatalf("[Config] %v", err)
	}

	repos := repository.NewRepositories(database.GetDB())

	paymentService := payments.NewService(repos, gateway.NewClient(gatewayCfg), paymentsCfg)

	application := &Application{basePath: findBasePath()}
	outboxCfg := outbox.LoadConfig()
	queue := jobqueue.NewQueue(nil, outboxCfg.Workers)
	application.Manager = application.setupOutbox(repos, queue, outboxCfg)

	app := fiber.New(fiber.Config{
		AppName:   "civicpay",
		BodyLimit: 1 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: env.GetEnv("CORS_ALLOWED_ORIGINS", "*"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// fiber runtime stats and prometheus share one set of credentials
	monitorUsers := map[string]string{}
	if password := env.GetEnv("MONITOR_PASSWORD", ""); password != "" {
		monitorUsers[env.GetEnv("MONITOR_USER", "admin")] = password
		app.Get(constants.MonitorRoute, basicauth.New(basicauth.Config{
			Users: monitorUsers,
		}), monitor.New(monitor.Config{Title: "civicpay"}))
	}

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: application.basePath + constants.OpenAPIFile,
		Path:     constants.DocsPath,
		Title:    "civicpay API",
	}))

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		Payments:       paymentService,
		JWTSecret:      jwtSecret,
		LimiterStorage: router.NewLimiterStorage(),
		MetricsUsers:   monitorUsers,
		HealthChecks: map[string]controllers.HealthCheck{
			"database": func(ctx context.Context) error {
				sqlDB, err := database.GetDB().DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"redis": func(ctx context.Context) error {
				return cache.GetClient().Ping(ctx).Err()
			},
		},
		Queue:  queue,
		Outbox: repos.Outbox,
	})

	application.App = app
	return application
}

// setupOutbox wires the sinks behind the deliver_effect jobs and schedules the relay
func (a *Application) setupOutbox(repos *repository.Repositories, queue *jobqueue.Queue, cfg *outbox.Config) *jobqueue.Manager {
	out := outbox.Outputs{}

	mailCfg := mail.LoadConfig()
	if mailCfg.Enabled() {
		out.Mailer = mail.NewSMTPMailer(mailCfg)
	} else {
		log.Info("[Outbox] SMTP_HOST not set, notifications stay in-app only")
	}

	archiveCfg, err := s3archive.LoadConfig()
	if err != nil {
		log.Fatalf("[Config] %v", err)
	}
	if archiveCfg.IsEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		archive, err := s3archive.NewClient(ctx, archiveCfg)
		cancel()
		if err != nil {
			log.Fatalf("[S3Archive] %v", err)
		}
		out.Archive = archive
	}

	if cfg.KafkaEnabled() {
		writer := outbox.NewKafkaWriter(cfg)
		out.Events = writer
		a.closers = append(a.closers, writer.Close)
		log.Infof("[Outbox] Publishing payment events to %s on %v", cfg.KafkaTopic, cfg.KafkaBrokers)
	}

	deliverer := outbox.NewDeliverer(repos)
	deliverer.RegisterDefaultSinks(out)
	deliverer.Attach(queue)

	manager := jobqueue.NewManager(queue)
	manager.AddTask(outbox.NewRelay(repos, queue, cfg).Task())
	return manager
}

// Shutdown stops accepting requests, drains the workers and closes outputs
func (a *Application) Shutdown(timeout time.Duration) {
	log.Info("[Server] Shutting down...")
	if err := a.App.ShutdownWithTimeout(timeout); err != nil {
		log.Errorf("[Server] Shutdown: %v", err)
	}
	a.Manager.Stop()
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			log.Warnf("[Server] Closing output: %v", err)
		}
	}
}

func findBasePath() string {
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/civicpay to project root
		"../../../", // Fallback
	}
	for _, path := range basePaths {
		if _, err := os.Stat(path + constants.OpenAPIFile); !os.IsNotExist(err) {
			return path
		}
	}
	panic("Could not find project root directory")
}
