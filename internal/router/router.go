package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/ysakura/event-campaign-backend/internal/handler"
)

// RegisterRoutes registers the routes that carry no per-route
// middleware.  Currently that is only the health check, used by load
// balancers to verify that the service is up.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Check)
}

// RegisterRegistration wires the registration and capacity endpoints
// under /v1.  Write routes are throttled with the token-bucket
// limiter; the availability read goes through the response cache so
// repeated polling does not hit MySQL.
func RegisterRegistration(e *echo.Echo, r *handler.RegistrationHandler, cap *handler.CapacityHandler, limit, cache echo.MiddlewareFunc) {
	g := e.Group("/v1")

	// Occurrence registration lifecycle.
	g.POST("/occurrences/:id/registrations", r.Create, limit)
	g.DELETE("/registrations/:id", r.Cancel, limit)

	// Direct counter operations for operators and batch tooling.
	g.POST("/occurrences/:id/capacity/reserve", cap.Reserve, limit)
	g.POST("/occurrences/:id/capacity/release", cap.Release, limit)
	g.GET("/occurrences/:id/availability", cap.Availability, cache)
}

// RegisterBrowse wires the unauthenticated read-only endpoints under
// /v1.  All of them go through the response cache; none of them apply
// the write limiter.
func RegisterBrowse(e *echo.Echo, b *handler.BrowseHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1", cache)
	g.GET("/campaigns/:id", b.GetCampaign)
	g.GET("/campaigns/:id/gifts", b.GetCampaignGifts)
	g.GET("/occurrences/:id", b.GetOccurrence)
	g.GET("/registrations/code/:code", b.GetRegistrationByCode)
	g.GET("/members/:id/gifts", b.GetMemberGrants)
}

// RegisterAllocation wires the prize allocation endpoints under /v1.
// Both routes mutate or read contested gift inventory, so they share
// the same limiter as the registration writes.
func RegisterAllocation(e *echo.Echo, a *handler.AllocationHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/campaigns")
	g.POST("/:id/winners/allocate", a.Allocate, limit)
	g.POST("/:id/winners/auto-select", a.AutoSelect, limit)
}
