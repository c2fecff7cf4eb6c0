// Package sinks formats notifications and delivers them to external channels.
package sinks

import (
	"context"

	"github.com/Adda-Baaj/cine-khobor/internal/domain"
)

// Supported sink types.
const (
	TypeTelegram = "telegram"
	TypeBluesky  = "bluesky"
	TypeHTTP     = "http"
	TypeSQS      = "sqs"
	TypeSNS      = "sns"
	TypePubSub   = "pubsub"
)

// Sink sends a notification to one downstream channel.
type Sink interface {
	ID() string
	Type() string
	Send(ctx context.Context, payload domain.NotificationPayload) error
}

// MediaReleaser is implemented by sinks that delete the payload's media file
// after a successful send. The fan-out runs them after every other sink.
type MediaReleaser interface {
	ReleasesMedia() bool
}

func releasesMedia(s Sink) bool {
	r, ok := s.(MediaReleaser)
	return ok && r.ReleasesMedia()
}
