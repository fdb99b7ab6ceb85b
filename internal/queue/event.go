// Package queue defines message payloads exchanged over the message
// broker together with the publisher and the background consumer that
// relays winner notifications to the push-messaging channel.
package queue

// WinnerQueueName is the durable queue carrying winner notifications.
const WinnerQueueName = "winner.notifications"

// WinnerNotifiedEvent is published after an allocation batch commits,
// once per grant whose gift has image notification enabled and an
// image.  It carries enough information for the relay to notify the
// winner without querying the primary database.
type WinnerNotifiedEvent struct {
	EventID        string `json:"event_id"`
	CampaignID     uint64 `json:"campaign_id"`
	GiftID         uint64 `json:"gift_id"`
	GiftName       string `json:"gift_name"`
	MemberID       uint64 `json:"member_id"`
	RegistrationID uint64 `json:"registration_id"`
	ImageURL       string `json:"image_url"`
	GrantedAt      string `json:"granted_at"`
}
