package sinks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adda-Baaj/cine-khobor/internal/domain"
)

type stubSink struct {
	id       string
	typ      string
	err      error
	panics   bool
	releases bool
	calls    int
	order    *[]string
	sawMedia bool
}

func (s *stubSink) ID() string   { return s.id }
func (s *stubSink) Type() string { return s.typ }
func (s *stubSink) ReleasesMedia() bool {
	return s.releases
}

func (s *stubSink) Send(_ context.Context, p domain.NotificationPayload) error {
	s.calls++
	if s.order != nil {
		*s.order = append(*s.order, s.id)
	}
	if p.HasMedia() {
		_, err := os.Stat(p.MediaPath)
		s.sawMedia = err == nil
	}
	if s.panics {
		panic("boom")
	}
	if s.err == nil && s.releases && p.HasMedia() {
		_ = os.Remove(p.MediaPath)
	}
	return s.err
}

func writeMedia(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tt1.jpg")
	if err := os.WriteFile(path, []byte("img"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	return path
}

func TestFanoutReportsEachSinkIndependently(t *testing.T) {
	chat := &stubSink{id: "chat", typ: TypeTelegram, err: errors.New("chat down")}
	social := &stubSink{id: "social", typ: TypeBluesky, releases: true}
	media := writeMedia(t)

	results := NewFanout([]Sink{chat, social}, nil).Deliver(context.Background(), domain.NotificationPayload{
		ItemID:    "abc",
		Text:      "hello",
		MediaPath: media,
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Sink != "chat" || results[0].OK() {
		t.Fatalf("expected chat failure first, got %+v", results[0])
	}
	if !errors.Is(results[0].Err, domain.ErrDelivery) {
		t.Fatalf("failure should wrap ErrDelivery: %v", results[0].Err)
	}
	if results[1].Sink != "social" || !results[1].OK() {
		t.Fatalf("expected social success, got %+v", results[1])
	}
	if _, err := os.Stat(media); !os.IsNotExist(err) {
		t.Fatalf("succeeding social sink should still clean up media, stat err=%v", err)
	}
	if len(Failed(results)) != 1 {
		t.Fatalf("expected exactly one failed result")
	}
}

func TestFanoutKeepsMediaWhenSocialFails(t *testing.T) {
	chat := &stubSink{id: "chat", typ: TypeTelegram}
	social := &stubSink{id: "social", typ: TypeBluesky, releases: true, err: errors.New("rejected")}
	media := writeMedia(t)

	results := NewFanout([]Sink{social, chat}, nil).Deliver(context.Background(), domain.NotificationPayload{
		Text:      "hello",
		MediaPath: media,
	})

	if !results[0].OK() || results[0].Sink != "chat" {
		t.Fatalf("chat should run first and succeed, got %+v", results[0])
	}
	if results[1].OK() {
		t.Fatalf("social failure not reported")
	}
	if _, err := os.Stat(media); err != nil {
		t.Fatalf("media must be retained after a failure: %v", err)
	}
}

func TestFanoutRunsMediaReleasersLast(t *testing.T) {
	var order []string
	social := &stubSink{id: "social", releases: true, order: &order}
	chat := &stubSink{id: "chat", order: &order}
	hook := &stubSink{id: "hook", order: &order}
	media := writeMedia(t)

	NewFanout([]Sink{social, chat, hook}, nil).Deliver(context.Background(), domain.NotificationPayload{MediaPath: media})

	if len(order) != 3 || order[0] != "chat" || order[1] != "hook" || order[2] != "social" {
		t.Fatalf("unexpected order %v", order)
	}
	if !chat.sawMedia || !hook.sawMedia {
		t.Fatalf("earlier sinks must see the media file")
	}
}

func TestFanoutRecoversPanics(t *testing.T) {
	bad := &stubSink{id: "bad", panics: true}
	good := &stubSink{id: "good"}

	results := NewFanout([]Sink{bad, good}, nil).Deliver(context.Background(), domain.NotificationPayload{Text: "x"})

	if results[0].OK() || !errors.Is(results[0].Err, domain.ErrDelivery) {
		t.Fatalf("panic should become a delivery error, got %+v", results[0])
	}
	if good.calls != 1 || !results[1].OK() {
		t.Fatalf("sink after a panicking one must still run")
	}
}

func TestFanoutRemovesMediaWhenAllSucceed(t *testing.T) {
	media := writeMedia(t)
	NewFanout([]Sink{&stubSink{id: "chat"}}, nil).Deliver(context.Background(), domain.NotificationPayload{MediaPath: media})

	if _, err := os.Stat(media); !os.IsNotExist(err) {
		t.Fatalf("media should be removed after full success, stat err=%v", err)
	}
}

func TestFanoutEmpty(t *testing.T) {
	var f *Fanout
	if res := f.Deliver(context.Background(), domain.NotificationPayload{}); res != nil {
		t.Fatalf("nil fanout should deliver nothing")
	}
	if NewFanout(nil, nil).Size() != 0 {
		t.Fatalf("expected empty fanout")
	}
}
