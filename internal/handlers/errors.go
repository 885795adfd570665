package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pickbox/backend/internal/middleware"
	"github.com/pickbox/backend/internal/services"
	"github.com/pickbox/backend/pkg/logger"
	"github.com/pickbox/backend/pkg/utils"
)

// writeServiceError maps a service error to its HTTP status. notFound is the
// message sent for ErrNotFound.
func writeServiceError(c *fiber.Ctx, err error, notFound string) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return utils.Error(c, fiber.StatusNotFound, notFound)
	case errors.Is(err, services.ErrForbidden):
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, services.ErrInvalidTarget):
		return utils.Error(c, fiber.StatusBadRequest, errorDetail(err, services.ErrInvalidTarget))
	case errors.Is(err, services.ErrPolicyViolation):
		return utils.Error(c, fiber.StatusUnprocessableEntity, errorDetail(err, services.ErrPolicyViolation))
	case errors.Is(err, services.ErrTransient):
		return utils.Error(c, fiber.StatusServiceUnavailable, "temporarily unavailable, please retry")
	case errors.Is(err, services.ErrEmailTaken):
		return utils.Error(c, fiber.StatusConflict, "email already registered")
	default:
		logger.Error("request_failed", err, map[string]interface{}{
			"method":     c.Method(),
			"path":       logger.RequestPath(c),
			"request_id": middleware.GetRequestID(c),
		})
		return utils.Error(c, fiber.StatusInternalServerError, "internal server error")
	}
}

// writeReadError is writeServiceError for endpoints that reveal file
// contents or metadata: a caller without access cannot tell the file exists.
func writeReadError(c *fiber.Ctx, err error, notFound string) error {
	if errors.Is(err, services.ErrForbidden) {
		return utils.Error(c, fiber.StatusNotFound, notFound)
	}
	return writeServiceError(c, err, notFound)
}

func errorDetail(err, sentinel error) string {
	detail := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if detail == "" {
		return sentinel.Error()
	}
	return detail
}
