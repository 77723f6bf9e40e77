// Package main provides the Approvio API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/approvio/approvio/pkg/definitions"
	"github.com/approvio/approvio/pkg/delegation"
	"github.com/approvio/approvio/pkg/directory"
	"github.com/approvio/approvio/pkg/engine"
	"github.com/approvio/approvio/pkg/eventbus"
	"github.com/approvio/approvio/pkg/gradepolicy"
	"github.com/approvio/approvio/pkg/persistence"
	"github.com/approvio/approvio/pkg/resolver"
	"github.com/approvio/approvio/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	directory   directory.Directory
	policyStore web.GradePolicyStore
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	dir directory.Directory,
	policyStore web.GradePolicyStore,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		directory:   dir,
		policyStore: policyStore,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App(ctx context.Context) (*fiber.App, error) {
	definitionRegistry := definitions.NewRegistry(a.persistence.Definitions(), a.logger)
	delegationRegistry := delegation.NewRegistry(a.persistence.Delegations(), a.logger)

	policies := gradepolicy.NewCache(a.policyStore, a.logger)
	if err := policies.Refresh(ctx); err != nil {
		a.logger.WarnContext(ctx, "Starting with an empty grade policy cache", "error", err)
	}

	approverResolver := resolver.NewResolver(a.directory, policies, delegationRegistry, a.logger)

	approvalEngine := engine.NewEngine(
		a.persistence.Instances(),
		definitionRegistry,
		approverResolver,
		delegationRegistry,
		a.directory,
		policies,
		a.eventBus,
		a.logger,
	)

	handlers := web.NewAPIHandlers(
		approvalEngine,
		definitionRegistry,
		delegationRegistry,
		policies,
		a.policyStore,
		a.persistence,
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Approvio API")
	})

	w := app.Group("/workflows")
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/", handlers.ListWorkflows)
	w.Get("/:id", handlers.GetWorkflow)
	w.Post("/:id/decision", handlers.DecideWorkflow)
	w.Post("/:id/delegate", handlers.DelegateWorkflow)
	w.Post("/:id/cancel", handlers.CancelWorkflow)

	approvals := app.Group("/approvals")
	approvals.Get("/pending", handlers.PendingApprovals)
	approvals.Get("/delegated", handlers.DelegatedApprovals)

	d := app.Group("/delegations")
	d.Post("/", handlers.CreateDelegation)
	d.Get("/", handlers.ListDelegations)
	d.Delete("/:id", handlers.RevokeDelegation)

	defs := app.Group("/definitions")
	defs.Post("/", handlers.CreateDefinition)
	defs.Get("/", handlers.ListDefinitions)
	defs.Get("/:id", handlers.GetDefinition)
	defs.Put("/:id", handlers.UpdateDefinition)
	defs.Post("/:id/activate", handlers.ActivateDefinition)
	defs.Post("/:id/deactivate", handlers.DeactivateDefinition)

	policiesGroup := app.Group("/grade-policies")
	policiesGroup.Get("/", handlers.ListGradePolicies)
	policiesGroup.Put("/:gradeCode", handlers.SaveGradePolicy)
	policiesGroup.Post("/refresh", handlers.RefreshGradePolicies)

	app.Get("/health", handlers.HealthCheck)

	return app, nil
}

func (a *API) Start(ctx context.Context, port int) error {
	app, err := a.App(ctx)
	if err != nil {
		return err
	}

	return app.Listen(":" + strconv.Itoa(port))
}
