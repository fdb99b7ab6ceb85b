package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ysakura/event-campaign-backend/internal/capacity"
	"github.com/ysakura/event-campaign-backend/internal/repository"
	"github.com/ysakura/event-campaign-backend/internal/service"
)

// CapacityHandler exposes the raw counter operations to the
// collaborating registration and cancellation controllers, plus an
// advisory availability read.
type CapacityHandler struct {
	Admission   *service.AdmissionService
	Occurrences *repository.OccurrenceRepo
	Counter     *capacity.Counter
}

// NewCapacityHandler constructs a CapacityHandler.
func NewCapacityHandler(admission *service.AdmissionService, occurrences *repository.OccurrenceRepo, counter *capacity.Counter) *CapacityHandler {
	if admission == nil || occurrences == nil {
		panic("nil dependency passed to NewCapacityHandler")
	}
	return &CapacityHandler{Admission: admission, Occurrences: occurrences, Counter: counter}
}

type unitsBody struct {
	Units uint32 `json:"units"`
}

func (b *unitsBody) normalized() uint32 {
	if b.Units == 0 {
		return 1
	}
	return b.Units
}

// Reserve handles POST /v1/occurrences/:id/capacity/reserve.  It
// claims units on the fast-path counter ahead of an external
// registration write.  The caller still owns the authoritative
// capacity check; a 409 here is only the cheap early rejection.
func (h *CapacityHandler) Reserve(c echo.Context) error {
	occurrenceID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || occurrenceID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid occurrence id"})
	}
	var body unitsBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	allowed, err := h.Admission.Reserve(c.Request().Context(), occurrenceID, body.normalized())
	if err != nil {
		return writeError(c, err)
	}
	if !allowed {
		return c.JSON(http.StatusConflict, echo.Map{"error": "capacity_exceeded"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// Release handles POST /v1/occurrences/:id/capacity/release.  It
// credits units back after a failed or cancelled external write.
// Always answers 200: the counter is best effort and self-corrects at
// the next seed.
func (h *CapacityHandler) Release(c echo.Context) error {
	occurrenceID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || occurrenceID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid occurrence id"})
	}
	var body unitsBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	h.Admission.Release(c.Request().Context(), occurrenceID, body.normalized())
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// Availability handles GET /v1/occurrences/:id/availability.  It
// reports the capacity ceiling, the authoritative committed units and
// the fast-path counter value (-1 when untracked).  Served through
// the read cache, so the numbers are advisory.
func (h *CapacityHandler) Availability(c echo.Context) error {
	occurrenceID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || occurrenceID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid occurrence id"})
	}
	ctx := c.Request().Context()
	occ, err := h.Occurrences.GetByID(ctx, occurrenceID)
	if err != nil {
		return writeError(c, err)
	}
	committed, err := h.Occurrences.LiveUnits(ctx, occ.ID, occ.GroupBooking)
	if err != nil {
		return writeError(c, err)
	}
	remaining := int64(occ.MaxAttendee) - int64(committed)
	if remaining < 0 {
		remaining = 0
	}
	return c.JSON(http.StatusOK, echo.Map{
		"occurrence_id": occ.ID,
		"max_attendee":  occ.MaxAttendee,
		"committed":     committed,
		"remaining":     remaining,
		"counter":       h.Counter.Current(ctx, occ.ID),
	})
}
