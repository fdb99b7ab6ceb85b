package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ysakura/event-campaign-backend/internal/service"
)

// AllocationHandler exposes the prize allocation engine: explicit
// transactional allocation and the automatic preview selection.
type AllocationHandler struct {
	Allocation *service.AllocationService
}

// NewAllocationHandler constructs an AllocationHandler.  The
// allocation service must be non-nil.
func NewAllocationHandler(allocation *service.AllocationService) *AllocationHandler {
	if allocation == nil {
		panic("nil allocation service passed to NewAllocationHandler")
	}
	return &AllocationHandler{Allocation: allocation}
}

// Allocate handles POST /v1/campaigns/:id/winners/allocate.  The body
// names the winning registrations and the gift pools to draw from.
// On success every persisted grant is returned; on a single-win
// violation the whole batch is rejected with 409 and zero grants.
func (h *AllocationHandler) Allocate(c echo.Context) error {
	campaignID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || campaignID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid campaign id"})
	}
	var body struct {
		RegistrationIDs []uint64 `json:"registration_ids"`
		GiftIDs         []uint64 `json:"gift_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.RegistrationIDs) == 0 || len(body.GiftIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "registration_ids and gift_ids are required"})
	}
	grants, err := h.Allocation.AllocatePrizes(c.Request().Context(), campaignID,
		dedupe(body.RegistrationIDs), dedupe(body.GiftIDs))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"grants": grants})
}

// AutoSelect handles POST /v1/campaigns/:id/winners/auto-select.  It
// previews which additional registrations would be recruited as
// winners given the remaining inventory; nothing is persisted, the
// grants require a follow-up Allocate call.
func (h *AllocationHandler) AutoSelect(c echo.Context) error {
	campaignID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || campaignID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid campaign id"})
	}
	var body struct {
		RegistrationIDs []uint64 `json:"registration_ids"`
		GiftIDs         []uint64 `json:"gift_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.GiftIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "gift_ids is required"})
	}
	ids, err := h.Allocation.SelectAutomaticWinners(c.Request().Context(), campaignID,
		dedupe(body.RegistrationIDs), dedupe(body.GiftIDs))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"registration_ids": ids})
}

// dedupe drops zero and repeated identifiers while preserving order.
func dedupe(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
