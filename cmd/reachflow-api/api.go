// Package main provides the reachflow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/reachflow/reachflow/pkg/channels"
	"github.com/reachflow/reachflow/pkg/persistence"
	"github.com/reachflow/reachflow/pkg/services"
	"github.com/reachflow/reachflow/pkg/web"
	"github.com/reachflow/reachflow/pkg/workflow"
)

type API struct {
	logger *slog.Logger
	store  persistence.Persistence
	config web.Config
}

func NewAPI(logger *slog.Logger, store persistence.Persistence, config web.Config) *API {
	return &API{
		logger: logger,
		store:  store,
		config: config,
	}
}

func (a *API) App() *fiber.App {
	validate := validator.New(validator.WithRequiredStructEnabled())

	dispatch := services.NewDispatch(a.store, []channels.Sender{
		channels.NewSMSClient(""),
		channels.NewEmailClient(""),
	}, a.logger)

	executor := workflow.NewExecutor(a.store, dispatch, a.logger)
	scheduler := workflow.NewScheduler(a.store, executor, a.logger)
	enrollment := services.NewEnrollment(a.store, a.logger)

	handlers := web.NewAPIHandlers(a.store, scheduler, enrollment, dispatch, validate, a.logger, a.config)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Reachflow API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
