package web

import (
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/gearboxhq/gearbox/pkg/limits"
	"github.com/gearboxhq/gearbox/pkg/tenant"
)

const (
	// TenantHeader resolves the calling tenant. Absent means a platform
	// admin caller.
	TenantHeader = "X-Tenant-ID"

	// IdempotencyHeader opts a mutating request into stored-response replay.
	IdempotencyHeader = "X-Idempotency-Key"

	scopeLocalKey = "tenant_scope"
)

// TenantScope resolves the tenant from the request and attaches a Scope to
// the request locals. The deferred Close guarantees exactly one connection
// release per request, whether the handler succeeds, errors or panics.
func TenantScope(manager *tenant.Manager) fiber.Handler {
	return func(c fiber.Ctx) error {
		tenantID := tenant.PlatformTenantID

		if raw := c.Get(TenantHeader); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || parsed <= 0 {
				return badRequest(c, "invalid tenant id")
			}

			tenantID = parsed
		}

		scope := tenant.NewScope(manager, tenantID)
		defer scope.Close()

		c.Locals(scopeLocalKey, scope)

		return c.Next()
	}
}

// ScopeFrom returns the request's tenant scope, nil when the middleware did
// not run.
func ScopeFrom(c fiber.Ctx) *tenant.Scope {
	scope, ok := c.Locals(scopeLocalKey).(*tenant.Scope)
	if !ok {
		return nil
	}

	return scope
}

// Limits enforces the per-tenant rate limit and idempotency-key replay for
// mutating endpoints. Both checks live in the tenant database and fail open:
// an unreachable store never blocks the request.
func Limits(logger *slog.Logger, limiter *limits.RateLimiter, idempotency *limits.IdempotencyStore) fiber.Handler {
	return func(c fiber.Ctx) error {
		scope := ScopeFrom(c)
		if scope == nil || scope.IsPlatform() {
			return c.Next()
		}

		db, err := scope.CompanyDB(c.Context())
		if err != nil {
			logger.WarnContext(c.Context(), "Limits skipped, tenant database unavailable",
				"tenant_id", scope.TenantID(), "error", err)

			return c.Next()
		}

		decision := limiter.Allow(c.Context(), db, "tenant:"+strconv.FormatInt(scope.TenantID(), 10))
		if !decision.Allowed {
			return tooManyRequests(c, decision.RetryAfter)
		}

		key := c.Get(IdempotencyHeader)
		if key == "" {
			return c.Next()
		}

		claim := idempotency.Register(c.Context(), db, key)
		if !claim.IsNew {
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

			return c.Status(claim.ResponseStatus).Send(claim.ResponseBody)
		}

		err = c.Next()
		if err != nil {
			return err
		}

		idempotency.Complete(c.Context(), db, key,
			c.Response().StatusCode(), json.RawMessage(c.Response().Body()))

		return nil
	}
}
