package model

import "time"

// Gift defines one finite prize pool belonging to a campaign.  The
// remaining inventory is never stored; it is always recomputed as
// Total minus the count of member_gifts rows granted against it.
//
// Fields:
//  ID                – primary key identifier.
//  CampaignID        – campaign the pool belongs to.
//  Name              – display name of the prize.
//  Total             – inventory ceiling for this pool.
//  ImageNotification – whether winners get an image push notification.
//  ImageURL          – image sent with the notification, if any.
//  DeletedAt         – soft-delete marker.
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type Gift struct {
	ID                uint64     // gifts.id
	CampaignID        uint64     // gifts.campaign_id
	Name              string     // gifts.name
	Total             uint32     // gifts.total
	ImageNotification bool       // gifts.image_notification
	ImageURL          *string    // gifts.image_url (nullable)
	DeletedAt         *time.Time // gifts.deleted_at (nullable)
	CreatedAt         time.Time  // gifts.created_at
	UpdatedAt         time.Time  // gifts.updated_at
}
