package sinks

import (
	"strings"
	"time"

	"github.com/Adda-Baaj/cine-khobor/internal/domain"
)

const dateLayout = "02 Jan 2006 15:04"

// Format renders the notification text. Missing optional fields are left out
// instead of being rendered as placeholders.
func Format(item domain.Item, ref domain.Reference, rec domain.EnrichmentRecord, loc *time.Location) domain.NotificationPayload {
	if loc == nil {
		loc = time.UTC
	}

	lines := []string{"🎬 " + strings.TrimSpace(item.Title)}
	if !item.CreatedAt.IsZero() {
		lines = append(lines, "📅 "+item.CreatedAt.In(loc).Format(dateLayout))
	}
	lines = append(lines, "🔗 "+ref.URL)
	if rec.HasRating() {
		lines = append(lines, "⭐ "+rec.Rating)
	}
	if rec.HasDescription() {
		lines = append(lines, "📝 "+rec.Description)
	}

	return domain.NotificationPayload{
		ItemID:       item.ID,
		Title:        item.Title,
		Text:         strings.Join(lines, "\n"),
		ReferenceURL: ref.URL,
		MediaPath:    rec.PosterPath,
		CreatedAt:    item.CreatedAt,
	}
}
