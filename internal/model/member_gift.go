package model

import "time"

// MemberGift is the durable record that a member, through a specific
// registration, has been granted one unit of a gift pool.  Rows are
// created only by the prize allocation engine inside a transaction and
// are never updated afterwards.
//
// Fields:
//  ID             – primary key identifier.
//  MemberID       – member who won.
//  RegistrationID – registration the grant was issued for.
//  GiftID         – gift pool the unit was drawn from.
//  CampaignID     – campaign the gift belongs to; denormalised so the
//                   single-win check is one indexed lookup.
//  DeletedAt      – soft-delete marker (cascading deletes only).
//  CreatedAt      – creation timestamp.
type MemberGift struct {
	ID             uint64     // member_gifts.id
	MemberID       uint64     // member_gifts.member_id
	RegistrationID uint64     // member_gifts.registration_id
	GiftID         uint64     // member_gifts.gift_id
	CampaignID     uint64     // member_gifts.campaign_id
	DeletedAt      *time.Time // member_gifts.deleted_at (nullable)
	CreatedAt      time.Time  // member_gifts.created_at
}
