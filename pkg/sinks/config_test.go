package sinks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRegistryEnabledFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sinks.yaml")
	raw := `
sinks:
  - id: hook1
    type: http
    enabled: false
    http:
      url: https://example.com
  - id: hook2
    type: http
    enabled: true
    http:
      url: https://example.com/2
  - id: chat
    type: telegram
    telegram:
      bot_token: "123:abc"
      chat_id: "-100"
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	enabled := reg.Enabled()
	if len(enabled) != 2 || enabled[0].ID != "hook2" || enabled[1].ID != "chat" {
		t.Fatalf("expected hook2 and chat enabled, got %#v", enabled)
	}
	chat, ok := reg.ByID("chat")
	if !ok || chat.Telegram.BaseURL != telegramDefaultBaseURL {
		t.Fatalf("expected default telegram base url, got %#v", chat.Telegram)
	}
}

func TestLoadRegistryJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sinks.json")
	raw := `{"sinks":[{"id":"q","type":"sqs","sqs":{"uri":"https://sqs/q","region":"us-east-1"}}]}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.All()) != 1 {
		t.Fatalf("expected one sink")
	}
}

func TestNewConfigRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewConfigRegistry([]SinkConfig{
		{ID: "a", Type: TypeHTTP, HTTP: &HTTPConfig{URL: "https://x"}},
		{ID: "a", Type: TypeHTTP, HTTP: &HTTPConfig{URL: "https://y"}},
	})
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestValidateSinkConfig(t *testing.T) {
	bad := []SinkConfig{
		{ID: "h1", Type: TypeHTTP},
		{ID: "t1", Type: TypeTelegram, Telegram: &TelegramConfig{BotToken: "x"}},
		{ID: "b1", Type: TypeBluesky, Bluesky: &BlueskyConfig{Identifier: "me"}},
		{ID: "s1", Type: TypeSNS, SNS: &SNSConfig{TopicARN: "arn"}},
		{ID: "p1", Type: TypePubSub, PubSub: &PubSubConfig{Topic: "t"}},
		{Type: TypeHTTP},
	}
	for _, cfg := range bad {
		if err := validateSinkConfig(sanitizeSinkConfig(cfg)); err == nil {
			t.Fatalf("expected validation error for %+v", cfg)
		}
	}
}

func TestBuildAllWithDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	built, err := BuildAll(context.Background(), reg, []SinkConfig{
		{ID: "http", Type: TypeHTTP, HTTP: &HTTPConfig{URL: "https://example.com"}},
		{ID: "chat", Type: TypeTelegram, Telegram: &TelegramConfig{BotToken: "1:a", ChatID: "2"}},
		{ID: "social", Type: TypeBluesky, Bluesky: &BlueskyConfig{Identifier: "me", Password: "pw"}},
	}, nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(built) != 3 {
		t.Fatalf("expected 3 sinks, got %d", len(built))
	}
	if _, err := reg.SinkFor(context.Background(), SinkConfig{ID: "x", Type: "carrier-pigeon"}, nil); err == nil {
		t.Fatalf("expected error for unknown sink type")
	}
}
