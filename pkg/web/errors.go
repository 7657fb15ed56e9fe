package web

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/gearboxhq/gearbox/pkg/persistence"
	"github.com/gearboxhq/gearbox/pkg/tenant"
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

func tooManyRequests(c fiber.Ctx, retryAfter time.Duration) error {
	seconds := int(retryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}

	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))

	problem := problems.NewStatusProblem(429).
		WithInstance(c.Path()).
		WithType("rate_limited").
		WithDetail("tenant request limit exceeded, retry later")

	return c.Status(fiber.StatusTooManyRequests).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleTenantError maps tenant routing and persistence failures onto
// problem responses.
func handleTenantError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, tenant.ErrTenantContextMissing):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("tenant_required").
			WithDetail("this resource requires a tenant context")

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case errors.Is(err, tenant.ErrConnectionFailed):
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("tenant_unavailable").
			WithDetail("tenant database is unavailable")

		return c.Status(fiber.StatusInternalServerError).JSON(problem)

	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow not found")

	default:
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
