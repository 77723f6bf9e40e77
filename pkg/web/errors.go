package web

import (
	"errors"

	"github.com/approvio/approvio/pkg/definitions"
	"github.com/approvio/approvio/pkg/delegation"
	"github.com/approvio/approvio/pkg/directory"
	"github.com/approvio/approvio/pkg/engine"
	"github.com/approvio/approvio/pkg/persistence"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for engine and registry errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case engine.IsUnauthorized(err):
		problem := problems.NewStatusProblem(403).
			WithInstance(c.Path()).
			WithType("unauthorized_approver").
			WithDetail(err.Error())

		return c.Status(fiber.StatusForbidden).JSON(problem)

	case engine.IsInvalidState(err), engine.IsConflict(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, definitions.ErrDefinitionActive):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("definition_active").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, engine.ErrInvalidAction),
		errors.Is(err, engine.ErrSelfDelegation),
		errors.Is(err, definitions.ErrUnknownWorkflowType),
		errors.Is(err, delegation.ErrSelfDelegation),
		errors.Is(err, delegation.ErrInvalidWindow),
		errors.Is(err, delegation.ErrNoWorkflowTypes):
		return badRequest(c, err.Error())

	case persistence.IsInstanceNotFound(err):
		return notFound(c, "workflow instance not found")

	case errors.Is(err, persistence.ErrActiveDefinitionNotFound):
		return notFound(c, "no active workflow definition for this type and department")

	case persistence.IsDefinitionNotFound(err):
		return notFound(c, "workflow definition not found")

	case persistence.IsDelegationNotFound(err):
		return notFound(c, "delegation not found")

	case errors.Is(err, persistence.ErrGradePolicyNotFound):
		return notFound(c, "grade policy not found")

	case directory.IsEmployeeNotFound(err):
		return notFound(c, "employee not found")

	default:
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
