package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adda-Baaj/cine-khobor/internal/config"
	"github.com/Adda-Baaj/cine-khobor/pkg/sinks"
)

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		UserAgent:         "test-agent",
		PollInterval:      time.Minute,
		BackoffInterval:   time.Second,
		HTTPTimeout:       2 * time.Second,
		StorageType:       "file",
		SeenFile:          filepath.Join(dir, "seen_posts.txt"),
		PostersDir:        filepath.Join(dir, "posters"),
		EnrichRatePerSec:  100,
		TargetDomain:      "imdb.com",
		DenyDomains:       []string{"t.co"},
		MarkUnmatchedSeen: true,
		Location:          time.UTC,
	}
}

func TestSinkConfigsMergesEnvAndFile(t *testing.T) {
	cfg := baseConfig(t)
	cfg.BotToken = "123:abc"
	cfg.GroupChatID = "-100"
	cfg.SocialUsername = "movies.bsky.social"
	cfg.SocialPassword = "app-pass"
	cfg.SocialPDSURL = "https://pds.example"

	sinksFile := filepath.Join(t.TempDir(), "sinks.yaml")
	content := `sinks:
  - id: hook
    type: http
    http:
      url: http://localhost:9/hook
  - id: archived
    type: http
    enabled: false
    http:
      url: http://localhost:9/old
`
	if err := os.WriteFile(sinksFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write sinks file: %v", err)
	}
	cfg.SinksFile = sinksFile

	cfgs, err := SinkConfigs(cfg)
	if err != nil {
		t.Fatalf("SinkConfigs: %v", err)
	}

	ids := make([]string, 0, len(cfgs))
	for _, c := range cfgs {
		ids = append(ids, c.ID)
	}
	if got := strings.Join(ids, ","); got != "telegram,bluesky,hook" {
		t.Fatalf("unexpected sinks %q", got)
	}
	if cfgs[0].Telegram.TimeoutSeconds != 2 {
		t.Fatalf("telegram timeout should follow HTTP_TIMEOUT, got %d", cfgs[0].Telegram.TimeoutSeconds)
	}
	if cfgs[1].Bluesky.PDS != "https://pds.example" {
		t.Fatalf("unexpected pds %q", cfgs[1].Bluesky.PDS)
	}
}

func TestSinkConfigsRejectsDuplicateIDs(t *testing.T) {
	cfg := baseConfig(t)
	cfg.BotToken = "123:abc"
	cfg.GroupChatID = "-100"

	sinksFile := filepath.Join(t.TempDir(), "sinks.json")
	content := `{"sinks":[{"id":"telegram","type":"http","http":{"url":"http://localhost:9"}}]}`
	if err := os.WriteFile(sinksFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write sinks file: %v", err)
	}
	cfg.SinksFile = sinksFile

	if _, err := SinkConfigs(cfg); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestNewNotifierRequiresSinks(t *testing.T) {
	if _, err := NewNotifier(context.Background(), baseConfig(t), nil); err == nil {
		t.Fatalf("expected error without sinks")
	}
}

func TestNotifierRunOnceDeliversThroughWebhook(t *testing.T) {
	var (
		mu     sync.Mutex
		events []sinks.Event
	)
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/r/movies/new.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		fmt.Fprintf(w, `{"data":{"children":[
			{"data":{"id":"abc123","title":"Foo Movie","created":1700000000,"selftext":"see %s/title/tt1234567/"}},
			{"data":{"id":"nolink","title":"Chat","created":1700000001,"selftext":"no links here"}}
		]}}`, srv.URL)
	})
	mux.HandleFunc("/title/tt1234567/plotsummary/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div data-testid="sub-section-summaries"><div class="ipc-html-content-inner-div">A heist goes wrong.</div></div></body></html>`)
	})
	mux.HandleFunc("/hook", func(w http.ResponseWriter, r *http.Request) {
		var ev sinks.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("decode event: %v", err)
		}
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	cfg := baseConfig(t)
	cfg.FeedURL = srv.URL + "/r/movies/new.json"
	cfg.TargetDomain = "127.0.0.1"
	cfg.PosterLookupURL = srv.URL + "/title/{id}/"

	sinksFile := filepath.Join(t.TempDir(), "sinks.yaml")
	if err := os.WriteFile(sinksFile, []byte("sinks:\n  - id: hook\n    type: http\n    http:\n      url: "+srv.URL+"/hook\n"), 0o644); err != nil {
		t.Fatalf("write sinks file: %v", err)
	}
	cfg.SinksFile = sinksFile

	n, err := NewNotifier(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	defer n.Close()

	stats, err := n.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if stats.Notified != 1 || stats.Unmatched != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("expected one webhook event, got %d", len(events))
	}
	if events[0].ItemID != "abc123" || !strings.Contains(events[0].Text, "A heist goes wrong.") {
		t.Fatalf("unexpected event %+v", events[0])
	}
	if strings.Contains(events[0].Text, "⭐") {
		t.Fatalf("missing rating must be omitted: %q", events[0].Text)
	}

	raw, err := os.ReadFile(cfg.SeenFile)
	if err != nil {
		t.Fatalf("read seen file: %v", err)
	}
	if got := string(raw); got != "abc123\nnolink\n" {
		t.Fatalf("unexpected seen file %q", got)
	}
}
