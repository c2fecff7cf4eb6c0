package pipeline

import (
	"context"

	"github.com/Adda-Baaj/cine-khobor/internal/domain"
)

// FeedFetcher retrieves the current feed items in feed order.
type FeedFetcher interface {
	Fetch(ctx context.Context) ([]domain.Item, error)
}

// LinkExtractor finds the reference in an item body and reports whether it qualifies.
type LinkExtractor interface {
	Extract(text string) (domain.Reference, bool)
}

// Enricher attaches best-effort metadata to a qualifying reference.
type Enricher interface {
	Enrich(ctx context.Context, ref domain.Reference) domain.EnrichmentRecord
}

// Deliverer fans a payload out to every sink and reports per-sink outcomes.
type Deliverer interface {
	Deliver(ctx context.Context, payload domain.NotificationPayload) []domain.DeliveryResult
}

// SeenStore is the subset of storage.Store the pipeline needs.
type SeenStore interface {
	SeenItem(id string) (bool, error)
	MarkItem(id string) error
	Flush() error
}
