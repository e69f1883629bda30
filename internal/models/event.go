package models

import "time"

// Event types published on the deal queue.
const (
	EventDealCreated = "deal.created"
	EventDealUpdated = "deal.updated"
	EventDealDeleted = "deal.deleted"
	EventUserDeleted = "user.deleted"
)

// Event is a lifecycle notification about a deal or a user.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	DealID     uint      `json:"deal_id,omitempty"`
	UserID     uint      `json:"user_id,omitempty"`
	ImageRefs  []string  `json:"image_refs,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
