package model

import "time"

// Campaign groups occasions, occurrences, gift pools and the
// registrations made against them.  Only the attributes the
// allocation core depends on are modelled here.
//
// Fields:
//  ID                – primary key identifier.
//  Name              – display name of the campaign.
//  IsMultipleWinners – when false the campaign is single-win: a member
//                      may hold at most one grant across all its gifts.
//  DeletedAt         – soft-delete marker.
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type Campaign struct {
	ID                uint64     // campaigns.id
	Name              string     // campaigns.name
	IsMultipleWinners bool       // campaigns.is_multiple_winners
	DeletedAt         *time.Time // campaigns.deleted_at (nullable)
	CreatedAt         time.Time  // campaigns.created_at
	UpdatedAt         time.Time  // campaigns.updated_at
}
