package sinks

import (
	"strings"
	"testing"
	"time"

	"github.com/Adda-Baaj/cine-khobor/internal/domain"
)

func TestFormatIncludesAvailableFields(t *testing.T) {
	item := domain.Item{ID: "abc123", Title: "Foo Movie", CreatedAt: time.Unix(1700000000, 0)}
	ref := domain.Reference{URL: "https://www.imdb.com/title/tt1234567/", Class: domain.RefQualifying}
	rec := domain.EnrichmentRecord{PosterPath: "posters/tt1234567.jpg", Rating: "7.8", Description: "A heist."}

	p := Format(item, ref, rec, time.UTC)

	want := strings.Join([]string{
		"🎬 Foo Movie",
		"📅 14 Nov 2023 22:13",
		"🔗 https://www.imdb.com/title/tt1234567/",
		"⭐ 7.8",
		"📝 A heist.",
	}, "\n")
	if p.Text != want {
		t.Fatalf("unexpected text:\n%s\nwant:\n%s", p.Text, want)
	}
	if p.MediaPath != "posters/tt1234567.jpg" || p.ItemID != "abc123" {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestFormatOmitsMissingFields(t *testing.T) {
	item := domain.Item{ID: "x", Title: "Bar", CreatedAt: time.Unix(1700000000, 0)}
	ref := domain.Reference{URL: "https://www.imdb.com/title/tt1/"}
	rec := domain.EnrichmentRecord{Rating: domain.NotAvailable, Description: "Plot."}

	p := Format(item, ref, rec, time.UTC)

	if strings.Contains(p.Text, "⭐") || strings.Contains(p.Text, domain.NotAvailable) {
		t.Fatalf("missing rating must be omitted: %q", p.Text)
	}
	if !strings.Contains(p.Text, "📝 Plot.") {
		t.Fatalf("description missing: %q", p.Text)
	}
	if p.HasMedia() {
		t.Fatalf("no poster means no media")
	}
}

func TestFormatUsesFixedLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	item := domain.Item{Title: "T", CreatedAt: time.Unix(1700000000, 0)}

	p := Format(item, domain.Reference{URL: "u"}, domain.EnrichmentRecord{}, loc)
	if !strings.Contains(p.Text, "📅 15 Nov 2023 03:43") {
		t.Fatalf("expected date in fixed location: %q", p.Text)
	}
}
