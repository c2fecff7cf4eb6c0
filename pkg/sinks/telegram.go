package sinks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
	"unicode/utf8"

	"github.com/Adda-Baaj/cine-khobor/internal/domain"
	"github.com/Adda-Baaj/cine-khobor/pkg/httpclient"
	json "github.com/goccy/go-json"
	"github.com/go-resty/resty/v2"
)

const (
	telegramMaxCaption = 1024
	telegramMaxMessage = 4096
)

// telegramSink delivers notifications through the Telegram bot API.
type telegramSink struct {
	id      string
	typ     string
	token   string
	chatID  string
	baseURL string
	client  *resty.Client
	log     Logger
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

func newTelegramSink(_ context.Context, cfg SinkConfig, log Logger) (Sink, error) {
	if cfg.Telegram == nil {
		return nil, fmt.Errorf("sink %q missing telegram configuration", cfg.ID)
	}
	return NewTelegramSink(cfg.ID, *cfg.Telegram, log), nil
}

// NewTelegramSink builds a chat sink; empty BaseURL targets the public bot API.
func NewTelegramSink(id string, cfg TelegramConfig, log Logger) Sink {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = telegramDefaultBaseURL
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds
	}
	return &telegramSink{
		id:      id,
		typ:     TypeTelegram,
		token:   cfg.BotToken,
		chatID:  cfg.ChatID,
		baseURL: baseURL,
		client:  httpclient.NewRestyHTTPClient(time.Duration(timeout) * time.Second),
		log:     ensureLogger(log),
	}
}

func (t *telegramSink) ID() string   { return t.id }
func (t *telegramSink) Type() string { return t.typ }

// Send posts a photo with caption when media is present, otherwise a text
// message. Captions longer than Telegram allows go out as a bare photo
// followed by the full text.
func (t *telegramSink) Send(ctx context.Context, payload domain.NotificationPayload) error {
	if !payload.HasMedia() {
		return t.sendMessage(ctx, payload.Text)
	}

	if _, err := os.Stat(payload.MediaPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			t.log.WarnObj("telegram media missing; sending text only", "telegram_media", map[string]any{
				"sink_id": t.id,
				"path":    payload.MediaPath,
			})
			return t.sendMessage(ctx, payload.Text)
		}
		return fmt.Errorf("stat media: %w", err)
	}

	if utf8.RuneCountInString(payload.Text) <= telegramMaxCaption {
		return t.sendPhoto(ctx, payload.MediaPath, payload.Text)
	}
	if err := t.sendPhoto(ctx, payload.MediaPath, ""); err != nil {
		return err
	}
	return t.sendMessage(ctx, payload.Text)
}

func (t *telegramSink) sendMessage(ctx context.Context, text string) error {
	req := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"chat_id": t.chatID,
			"text":    truncateRunes(text, telegramMaxMessage),
		})

	resp, err := req.Post(t.endpoint("sendMessage"))
	return t.check("sendMessage", resp, err)
}

func (t *telegramSink) sendPhoto(ctx context.Context, path, caption string) error {
	form := map[string]string{"chat_id": t.chatID}
	if caption != "" {
		form["caption"] = caption
	}

	req := t.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetFile("photo", path)

	resp, err := req.Post(t.endpoint("sendPhoto"))
	return t.check("sendPhoto", resp, err)
}

func (t *telegramSink) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
}

func (t *telegramSink) check(method string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: telegram %s: %w", domain.ErrTransport, method, err)
	}

	var apiResp telegramResponse
	if jerr := json.Unmarshal(resp.Body(), &apiResp); jerr != nil {
		if resp.IsError() {
			return fmt.Errorf("telegram %s status %d: %s", method, resp.StatusCode(), readBodySnippet(resp.Body()))
		}
		return fmt.Errorf("telegram %s: decode response: %w", method, jerr)
	}
	if !apiResp.OK || resp.IsError() {
		return fmt.Errorf("telegram %s failed (code %d): %s", method, apiResp.ErrorCode, apiResp.Description)
	}
	return nil
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
