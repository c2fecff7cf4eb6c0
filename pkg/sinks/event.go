package sinks

import (
	"time"

	"github.com/Adda-Baaj/cine-khobor/internal/domain"
)

// Event is the JSON document machine sinks (http, sqs, sns, pubsub) publish.
type Event struct {
	ItemID       string    `json:"item_id"`
	Title        string    `json:"title"`
	Text         string    `json:"text"`
	ReferenceURL string    `json:"reference_url"`
	PostedAt     time.Time `json:"posted_at"`
	NotifiedAt   time.Time `json:"notified_at"`
}

// NewEvent builds the machine-readable form of a notification.
func NewEvent(p domain.NotificationPayload) Event {
	return Event{
		ItemID:       p.ItemID,
		Title:        p.Title,
		Text:         p.Text,
		ReferenceURL: p.ReferenceURL,
		PostedAt:     p.CreatedAt.UTC(),
		NotifiedAt:   time.Now().UTC(),
	}
}
