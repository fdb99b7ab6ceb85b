package model

import "time"

// Registration records a single claim against an occurrence's
// capacity.  It is created only through the admission write path and
// read by the prize allocation engine as an immutable candidate.
//
// Fields:
//  ID               – primary key identifier.
//  Code             – opaque public identifier handed to clients.
//  OccurrenceID     – occurrence whose capacity is consumed.
//  MemberID         – member who registered; nil for manual entries.
//  Expected         – attendee count for ordinary occurrences.
//  ParticipantCount – participant count for group-booking occurrences.
//  CompanionCount   – companion count for group-booking occurrences.
//  Attended         – whether attendance was recorded.
//  IsWin            – whether the registration was marked a winner.
//  CancelledAt      – set when the claim was cancelled; releases units.
//  DeletedAt        – soft-delete marker.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Registration struct {
	ID               uint64     // registrations.id
	Code             string     // registrations.code
	OccurrenceID     uint64     // registrations.occurrence_id
	MemberID         *uint64    // registrations.member_id (nullable)
	Expected         uint32     // registrations.expected
	ParticipantCount uint32     // registrations.participant_count
	CompanionCount   uint32     // registrations.companion_count
	Attended         bool       // registrations.attended
	IsWin            bool       // registrations.is_win
	CancelledAt      *time.Time // registrations.cancelled_at (nullable)
	DeletedAt        *time.Time // registrations.deleted_at (nullable)
	CreatedAt        time.Time  // registrations.created_at
	UpdatedAt        time.Time  // registrations.updated_at
}

// Units returns the number of capacity units this registration
// consumes.  Group-booking occurrences count participants plus
// companions; everything else counts the expected attendees.
func (r *Registration) Units(groupBooking bool) uint32 {
	if groupBooking {
		return r.ParticipantCount + r.CompanionCount
	}
	return r.Expected
}

// Live reports whether the registration still holds capacity, i.e. it
// has been neither cancelled nor soft-deleted.
func (r *Registration) Live() bool {
	return r.CancelledAt == nil && r.DeletedAt == nil
}
