// This file defines handlers for the public browsing API.  These
// routes let clients inspect campaigns, gift inventory, occurrences
// and their own registrations without touching the write paths.
// Soft-delete markers and display flags are filtered from responses.

package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ysakura/event-campaign-backend/internal/model"
	"github.com/ysakura/event-campaign-backend/internal/repository"
)

// BrowseHandler aggregates the repositories needed for read-only
// browsing.  It produces sanitized responses suitable for public
// consumption.
type BrowseHandler struct {
	Campaigns     *repository.CampaignRepo
	Gifts         *repository.GiftRepo
	Occurrences   *repository.OccurrenceRepo
	Registrations *repository.RegistrationRepo
	MemberGifts   *repository.MemberGiftRepo
}

// PublicCampaign is a campaign exposed via the browse API.
type PublicCampaign struct {
	ID                uint64 `json:"id"`
	Name              string `json:"name"`
	IsMultipleWinners bool   `json:"is_multiple_winners"`
}

// PublicGift is one prize pool in list responses.  Remaining reflects
// granted counts at read time and may be stale.
type PublicGift struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	Total     uint32 `json:"total"`
	Remaining uint32 `json:"remaining"`
}

// PublicOccurrence is one bookable slot in detail responses.
type PublicOccurrence struct {
	ID           uint64    `json:"id"`
	OccasionID   uint64    `json:"occasion_id"`
	CampaignID   uint64    `json:"campaign_id"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	MaxAttendee  uint32    `json:"max_attendee"`
	GroupBooking bool      `json:"group_booking"`
	Ended        bool      `json:"ended"`
}

// PublicRegistration is a registration looked up by its public code.
type PublicRegistration struct {
	Code         string     `json:"code"`
	OccurrenceID uint64     `json:"occurrence_id"`
	Units        uint32     `json:"units"`
	Attended     bool       `json:"attended"`
	IsWin        bool       `json:"is_win"`
	Live         bool       `json:"live"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// PublicGrant is one reward grant in a member's grant list.
type PublicGrant struct {
	GiftID         uint64    `json:"gift_id"`
	CampaignID     uint64    `json:"campaign_id"`
	RegistrationID uint64    `json:"registration_id"`
	GrantedAt      time.Time `json:"granted_at"`
}

// GetCampaign returns a single campaign by id.
func (h *BrowseHandler) GetCampaign(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid campaign id"})
	}
	campaign, err := h.Campaigns.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, PublicCampaign{
		ID:                campaign.ID,
		Name:              campaign.Name,
		IsMultipleWinners: campaign.IsMultipleWinners,
	})
}

// GetCampaignGifts lists the gift pools of a campaign together with
// their advisory remaining counts.  The campaign is validated first so
// an unknown id yields 410 rather than an empty list.
func (h *BrowseHandler) GetCampaignGifts(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid campaign id"})
	}
	if _, err := h.Campaigns.Get(ctx, id); err != nil {
		return writeError(c, err)
	}
	gifts, err := h.Gifts.ListByCampaign(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	granted, err := h.Gifts.GrantedCounts(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]PublicGift, 0, len(gifts))
	for _, g := range gifts {
		remaining := uint32(0)
		if used := granted[g.ID]; used < g.Total {
			remaining = g.Total - used
		}
		out = append(out, PublicGift{ID: g.ID, Name: g.Name, Total: g.Total, Remaining: remaining})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetOccurrence returns one bookable slot.  Hidden and deleted slots
// are indistinguishable from missing ones.
func (h *BrowseHandler) GetOccurrence(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid occurrence id"})
	}
	occ, err := h.Occurrences.GetDetail(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, PublicOccurrence{
		ID:           occ.ID,
		OccasionID:   occ.OccasionID,
		CampaignID:   occ.CampaignID,
		StartsAt:     occ.StartsAt,
		EndsAt:       occ.EndsAt,
		MaxAttendee:  occ.MaxAttendee,
		GroupBooking: occ.GroupBooking,
		Ended:        occ.Ended(time.Now()),
	})
}

// GetRegistrationByCode resolves the opaque code handed out at
// admission time back to the registration's current state.  The
// occurrence is loaded too because the unit count depends on its
// group-booking flag.
func (h *BrowseHandler) GetRegistrationByCode(c echo.Context) error {
	ctx := c.Request().Context()
	code := c.Param("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing registration code"})
	}
	reg, err := h.Registrations.GetByCode(ctx, code)
	if err != nil {
		return writeError(c, err)
	}
	occ, err := h.Occurrences.GetByID(ctx, reg.OccurrenceID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, PublicRegistration{
		Code:         reg.Code,
		OccurrenceID: reg.OccurrenceID,
		Units:        reg.Units(occ.GroupBooking),
		Attended:     reg.Attended,
		IsWin:        reg.IsWin,
		Live:         reg.Live(),
		CancelledAt:  reg.CancelledAt,
		CreatedAt:    reg.CreatedAt,
	})
}

// GetMemberGrants lists the reward grants a member holds across all
// campaigns, newest first.
func (h *BrowseHandler) GetMemberGrants(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid member id"})
	}
	grants, err := h.MemberGifts.ListByMember(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]PublicGrant, 0, len(grants))
	for _, g := range grants {
		out = append(out, toPublicGrant(g))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

func toPublicGrant(g model.MemberGift) PublicGrant {
	return PublicGrant{
		GiftID:         g.GiftID,
		CampaignID:     g.CampaignID,
		RegistrationID: g.RegistrationID,
		GrantedAt:      g.CreatedAt,
	}
}
