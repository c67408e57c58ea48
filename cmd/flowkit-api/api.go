// Package main provides the flowkit operational API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/campushive/flowkit/pkg/dedupe"
	"github.com/campushive/flowkit/pkg/eventbus"
	"github.com/campushive/flowkit/pkg/persistence"
	"github.com/campushive/flowkit/pkg/runtime"
	"github.com/campushive/flowkit/pkg/strategies"
	"github.com/campushive/flowkit/pkg/triggers"
	"github.com/campushive/flowkit/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	dedupeStore persistence.DedupeStore
	registry    *strategies.Registry
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	dedupeStore persistence.DedupeStore,
	registry *strategies.Registry,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:      logger,
		persistence: store,
		dedupeStore: dedupeStore,
		registry:    registry,
		eventBus:    eventBus,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	runner := runtime.NewRunner(a.logger, a.persistence, a.registry, a.eventBus, a.tracer)
	guard := dedupe.NewGuard(a.logger, a.dedupeStore)
	router := triggers.NewRouter(a.logger, a.persistence.Triggers(), guard, runner.Run, a.eventBus)

	handlers := web.NewAPIHandlers(a.persistence, runner, router, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowkit API")
	})

	w := app.Group("/workflows")
	w.Post("/:id/executions", handlers.StartExecution)

	e := app.Group("/executions")
	e.Get("/:id", handlers.GetExecution)
	e.Get("/:id/logs", handlers.GetExecutionLogs)
	e.Post("/:id/cancel", handlers.CancelExecution)

	app.Post("/events", handlers.IngestEvent)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
