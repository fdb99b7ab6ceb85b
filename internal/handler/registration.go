package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ysakura/event-campaign-backend/internal/service"
)

// RegistrationHandler exposes the admission-gated registration write
// path.  All capacity decisions are made by the admission service;
// the handler only parses input and shapes responses.
type RegistrationHandler struct {
	Admission *service.AdmissionService
}

// NewRegistrationHandler constructs a RegistrationHandler.  The
// admission service must be non-nil.
func NewRegistrationHandler(admission *service.AdmissionService) *RegistrationHandler {
	if admission == nil {
		panic("nil admission service passed to NewRegistrationHandler")
	}
	return &RegistrationHandler{Admission: admission}
}

// Create handles POST /v1/occurrences/:id/registrations.  The body
// carries the member reference and attendee counts; for ordinary
// occurrences "expected" defaults to one attendee, for group-booking
// occurrences participant and companion counts apply instead.  A full
// occurrence answers 409, a deleted one 410.
func (h *RegistrationHandler) Create(c echo.Context) error {
	occurrenceID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || occurrenceID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid occurrence id"})
	}
	var body struct {
		MemberID         *uint64 `json:"member_id"`
		Expected         uint32  `json:"expected"`
		ParticipantCount uint32  `json:"participant_count"`
		CompanionCount   uint32  `json:"companion_count"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	rec, err := h.Admission.Register(c.Request().Context(), service.RegisterInput{
		OccurrenceID:     occurrenceID,
		MemberID:         body.MemberID,
		Expected:         body.Expected,
		ParticipantCount: body.ParticipantCount,
		CompanionCount:   body.CompanionCount,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":         rec.ID,
		"code":       rec.Code,
		"created_at": rec.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// Cancel handles DELETE /v1/registrations/:id.  A successful
// cancellation releases the registration's attendee units back to the
// occurrence's capacity pool; cancelling twice answers 409.
func (h *RegistrationHandler) Cancel(c echo.Context) error {
	registrationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || registrationID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid registration id"})
	}
	if err := h.Admission.Cancel(c.Request().Context(), registrationID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
