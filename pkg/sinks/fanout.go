package sinks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/Adda-Baaj/cine-khobor/internal/domain"
	"github.com/Adda-Baaj/cine-khobor/internal/metrics"
)

// Fanout dispatches notifications to all configured sinks.
type Fanout struct {
	sinks []Sink
	log   Logger
}

// NewFanout builds a dispatcher over sinks. Sinks that release the media file
// are moved to the end so every other sink still sees the file.
func NewFanout(sinks []Sink, log Logger) *Fanout {
	cp := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		cp = append(cp, s)
	}
	sort.SliceStable(cp, func(i, j int) bool {
		return !releasesMedia(cp[i]) && releasesMedia(cp[j])
	})
	return &Fanout{sinks: cp, log: ensureLogger(log)}
}

// Deliver hands payload to every sink independently and reports one result per
// sink. It never returns an error or panics; failures are wrapped with
// domain.ErrDelivery. When every sink succeeded the media file is removed.
func (f *Fanout) Deliver(ctx context.Context, payload domain.NotificationPayload) []domain.DeliveryResult {
	if f == nil || len(f.sinks) == 0 {
		return nil
	}

	results := make([]domain.DeliveryResult, 0, len(f.sinks))
	allOK := true
	for _, s := range f.sinks {
		err := f.send(ctx, s, payload)
		if err != nil {
			allOK = false
			err = fmt.Errorf("%w: %s sink[%s]: %w", domain.ErrDelivery, s.Type(), s.ID(), err)
			f.log.WarnObj("sink delivery failed", "delivery_error", map[string]any{
				"item_id": payload.ItemID,
				"stage":   "deliver",
				"sink":    s.ID(),
				"error":   err.Error(),
			})
		} else {
			f.log.InfoObj("notification sent", "delivery", map[string]any{
				"item_id": payload.ItemID,
				"sink":    s.ID(),
				"title":   payload.Title,
			})
		}
		metrics.RecordDelivery(s.ID(), err == nil)
		results = append(results, domain.DeliveryResult{Sink: s.ID(), Type: s.Type(), Err: err})
	}

	if allOK && payload.HasMedia() {
		if err := os.Remove(payload.MediaPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			f.log.WarnObj("media cleanup failed", "media_cleanup_error", map[string]any{
				"item_id": payload.ItemID,
				"path":    payload.MediaPath,
				"error":   err.Error(),
			})
		}
	}
	return results
}

func (f *Fanout) send(ctx context.Context, s Sink, payload domain.NotificationPayload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Send(ctx, payload)
}

// Size returns the number of active sinks.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.sinks)
}

// Close releases sink resources (e.g. Pub/Sub clients).
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, s := range f.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s sink[%s]: %w", s.Type(), s.ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Failed returns the failed results.
func Failed(results []domain.DeliveryResult) []domain.DeliveryResult {
	var out []domain.DeliveryResult
	for _, r := range results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}
