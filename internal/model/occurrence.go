package model

import "time"

// Occurrence represents one bookable time slot of an event.  Each
// occurrence belongs to an occasion within a campaign and carries a
// hard attendee ceiling.  Registrations claim capacity against it.
//
// Fields:
//  ID           – primary key identifier.
//  OccasionID   – occasion (event schedule) this slot belongs to.
//  CampaignID   – campaign the owning occasion belongs to.
//  StartsAt     – when the slot begins.
//  EndsAt       – when the slot ends (must be after StartsAt).
//  MaxAttendee  – hard capacity; the sum of live registration units
//                 must never exceed this value.
//  GroupBooking – when true, registrations consume participant plus
//                 companion units instead of the expected count.
//  IsDisplay    – whether the slot is visible to members.
//  DeletedAt    – soft-delete marker, nil while the slot is live.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type Occurrence struct {
	ID           uint64     // occurrences.id
	OccasionID   uint64     // occurrences.occasion_id
	CampaignID   uint64     // occurrences.campaign_id
	StartsAt     time.Time  // occurrences.starts_at
	EndsAt       time.Time  // occurrences.ends_at
	MaxAttendee  uint32     // occurrences.max_attendee
	GroupBooking bool       // occurrences.group_booking
	IsDisplay    bool       // occurrences.is_display
	DeletedAt    *time.Time // occurrences.deleted_at (nullable)
	CreatedAt    time.Time  // occurrences.created_at
	UpdatedAt    time.Time  // occurrences.updated_at
}

// Ended reports whether the slot's end time has already passed at the
// given instant.  Ended occurrences are excluded from counter seeding.
func (o *Occurrence) Ended(now time.Time) bool {
	return !o.EndsAt.After(now)
}
