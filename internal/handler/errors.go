// Package handler implements the HTTP surface of the allocation
// core.  Handlers bind and validate request bodies, delegate to the
// services and translate sentinel errors into status codes.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ysakura/event-campaign-backend/internal/repository"
)

// writeError maps repository sentinels onto HTTP responses.  Anything
// unrecognised is reported as a plain database error without leaking
// internals.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed"})
	case errors.Is(err, repository.ErrCapacityExceeded):
		return c.JSON(http.StatusConflict, echo.Map{"error": "capacity_exceeded"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	case errors.Is(err, repository.ErrResourceGone):
		return c.JSON(http.StatusGone, echo.Map{"error": "resource_gone"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}
