package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ysakura/event-campaign-backend/internal/capacity"
)

// HealthHandler serves the health-check endpoint used by load
// balancers and monitoring systems to verify that the service is
// running.
type HealthHandler struct {
	Counter *capacity.Counter
}

// Check answers 200 as long as the process is serving.  The counter
// store is reported but never fails the check: without it the
// admission fast path degrades, the service stays up.
func (h *HealthHandler) Check(c echo.Context) error {
	counterStatus := "ok"
	if err := h.Counter.Ping(c.Request().Context()); err != nil {
		counterStatus = "degraded"
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "ok",
		"counter": counterStatus,
	})
}
