package sinks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Adda-Baaj/cine-khobor/internal/domain"
)

const blueskyMaxText = 300

var errMediaRequired = errors.New("media required")

// blueskySink posts the poster with the notification text as caption. It owns
// its session and deletes the media file only after a successful post.
type blueskySink struct {
	id         string
	typ        string
	identifier string
	password   string
	client     *BlueskyClient
	log        Logger
}

func newBlueskySink(_ context.Context, cfg SinkConfig, log Logger) (Sink, error) {
	if cfg.Bluesky == nil {
		return nil, fmt.Errorf("sink %q missing bluesky configuration", cfg.ID)
	}
	return NewBlueskySink(cfg.ID, *cfg.Bluesky, log), nil
}

// NewBlueskySink builds a social sink. Login happens lazily on first send.
func NewBlueskySink(id string, cfg BlueskyConfig, log Logger) Sink {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds
	}
	return &blueskySink{
		id:         id,
		typ:        TypeBluesky,
		identifier: cfg.Identifier,
		password:   cfg.Password,
		client:     NewBlueskyClient(cfg.PDS, time.Duration(timeout)*time.Second),
		log:        ensureLogger(log),
	}
}

func (b *blueskySink) ID() string          { return b.id }
func (b *blueskySink) Type() string        { return b.typ }
func (b *blueskySink) ReleasesMedia() bool { return true }

func (b *blueskySink) Send(ctx context.Context, payload domain.NotificationPayload) error {
	if !payload.HasMedia() {
		return errMediaRequired
	}
	data, err := os.ReadFile(payload.MediaPath)
	if err != nil {
		return fmt.Errorf("read media: %w", err)
	}

	hadSession := b.client.Authenticated()
	err = b.post(ctx, payload, data)
	if hadSession && errors.Is(err, errUnauthorized) {
		// Session expired; log in again once.
		b.log.InfoObj("bluesky session rejected; logging in again", "bluesky_session", map[string]any{
			"sink_id": b.id,
		})
		if lerr := b.client.Login(ctx, b.identifier, b.password); lerr != nil {
			return fmt.Errorf("%w: bluesky re-login: %w", domain.ErrTransport, lerr)
		}
		err = b.post(ctx, payload, data)
	}
	if err != nil {
		return err
	}

	if rerr := os.Remove(payload.MediaPath); rerr != nil {
		b.log.WarnObj("bluesky media cleanup failed", "bluesky_cleanup", map[string]any{
			"sink_id": b.id,
			"path":    payload.MediaPath,
			"error":   rerr.Error(),
		})
	}
	return nil
}

func (b *blueskySink) post(ctx context.Context, payload domain.NotificationPayload, data []byte) error {
	if !b.client.Authenticated() {
		if err := b.client.Login(ctx, b.identifier, b.password); err != nil {
			return fmt.Errorf("bluesky login: %w", err)
		}
	}

	blob, err := b.client.UploadBlob(ctx, data, http.DetectContentType(data))
	if err != nil {
		return fmt.Errorf("bluesky upload: %w", err)
	}
	return b.client.CreateImagePost(ctx, truncateRunes(payload.Text, blueskyMaxText), blob, payload.Title)
}
