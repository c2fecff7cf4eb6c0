package domain

import "time"

// Domain contains core models shared by the pipeline stages.

// NotAvailable marks an enrichment field whose lookup failed or matched nothing.
const NotAvailable = "N/A"

// Item is a single post retrieved from the feed. Items are never mutated after fetch.
type Item struct {
	ID        string
	Title     string
	CreatedAt time.Time
	Body      string
}

// RefClass is the classification of the first URL found in an item body.
type RefClass int

const (
	RefNone RefClass = iota
	RefQualifying
	RefRejected
)

func (c RefClass) String() string {
	switch c {
	case RefQualifying:
		return "qualifying"
	case RefRejected:
		return "rejected"
	default:
		return "none"
	}
}

// Reference is the externally linked resource extracted from an item body.
type Reference struct {
	URL   string
	Host  string
	Class RefClass
}

// Qualifying reports whether the reference should be enriched and delivered.
func (r Reference) Qualifying() bool {
	return r.Class == RefQualifying && r.URL != ""
}

// EnrichmentRecord carries optional metadata for one reference.
// Empty PosterPath means no poster; Rating and Description hold NotAvailable
// when their lookup failed.
type EnrichmentRecord struct {
	TitleID     string
	PosterPath  string
	Rating      string
	Description string
}

// HasRating reports whether a usable rating was found.
func (r EnrichmentRecord) HasRating() bool {
	return present(r.Rating)
}

// HasDescription reports whether a usable synopsis was found.
func (r EnrichmentRecord) HasDescription() bool {
	return present(r.Description)
}

func present(v string) bool {
	return v != "" && v != NotAvailable
}

// NotificationPayload is the unit handed to every delivery sink.
type NotificationPayload struct {
	ItemID       string    `json:"item_id"`
	Title        string    `json:"title"`
	Text         string    `json:"text"`
	ReferenceURL string    `json:"reference_url"`
	MediaPath    string    `json:"media_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasMedia reports whether a local media file accompanies the payload.
func (p NotificationPayload) HasMedia() bool {
	return p.MediaPath != ""
}

// DeliveryResult is the outcome of handing one payload to one sink.
type DeliveryResult struct {
	Sink string
	Type string
	Err  error
}

// OK reports whether the sink accepted the payload.
func (r DeliveryResult) OK() bool {
	return r.Err == nil
}
