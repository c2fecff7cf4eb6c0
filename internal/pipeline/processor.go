// Package pipeline runs one poll cycle: fetch, dedup, extract, enrich,
// deliver and record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adda-Baaj/cine-khobor/internal/domain"
	"github.com/Adda-Baaj/cine-khobor/internal/logger"
	"github.com/Adda-Baaj/cine-khobor/internal/metrics"
	"github.com/Adda-Baaj/cine-khobor/pkg/sinks"
	"github.com/google/uuid"
)

// Options tunes per-item behaviour.
type Options struct {
	// MarkUnmatched records items without a qualifying reference as seen, so
	// they are skipped without extraction on later cycles.
	MarkUnmatched bool
	// Location renders item dates in notifications.
	Location *time.Location
	Log      logger.Logger
}

// CycleStats summarizes one cycle.
type CycleStats struct {
	CycleID          string
	Fetched          int
	Seen             int
	Unmatched        int
	Rejected         int
	Notified         int
	DeliveryFailures int
	FetchFailed      bool
}

// Processor sequences the pipeline stages for each item, strictly one item at
// a time in feed order.
type Processor struct {
	feed     FeedFetcher
	links    LinkExtractor
	enricher Enricher
	out      Deliverer
	store    SeenStore
	opts     Options
	log      logger.Logger
}

// NewProcessor wires the pipeline stages.
func NewProcessor(feed FeedFetcher, links LinkExtractor, enricher Enricher, out Deliverer, store SeenStore, opts Options) *Processor {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Processor{
		feed:     feed,
		links:    links,
		enricher: enricher,
		out:      out,
		store:    store,
		opts:     opts,
		log:      logger.Ensure(opts.Log),
	}
}

// RunCycle performs one fetch and processes every unseen item.
//
// A transport or parse failure while fetching is a failed poll: it is logged
// and the cycle ends cleanly with no items. Any other fetch error, a failure to
// record an item as seen, a flush failure, or a panic is returned and
// ends the cycle.
func (p *Processor) RunCycle(ctx context.Context) (stats CycleStats, err error) {
	stats.CycleID = uuid.NewString()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle %s panicked: %v", stats.CycleID, r)
		}
	}()

	items, ferr := p.feed.Fetch(ctx)
	if ferr != nil {
		if !domain.Recoverable(ferr) {
			return stats, fmt.Errorf("fetch feed: %w", ferr)
		}
		stats.FetchFailed = true
		p.log.WarnObj("feed poll failed", "fetch_error", map[string]any{
			"cycle_id": stats.CycleID,
			"stage":    "fetch",
			"error":    ferr.Error(),
		})
		return stats, nil
	}
	stats.Fetched = len(items)

	var cycleErr error
	for _, item := range items {
		if ctx.Err() != nil {
			cycleErr = ctx.Err()
			break
		}
		if err := p.processItem(ctx, item, &stats); err != nil {
			cycleErr = err
			break
		}
	}

	if err := p.store.Flush(); err != nil {
		cycleErr = errors.Join(cycleErr, fmt.Errorf("flush seen set: %w", err))
	}
	return stats, cycleErr
}

func (p *Processor) processItem(ctx context.Context, item domain.Item, stats *CycleStats) error {
	seen, err := p.store.SeenItem(item.ID)
	if err != nil {
		p.log.WarnObj("seen lookup failed; treating item as new", "seen_error", map[string]any{
			"item_id": item.ID,
			"stage":   "seen_lookup",
			"error":   err.Error(),
		})
	} else if seen {
		stats.Seen++
		metrics.ItemsTotal.WithLabelValues("seen").Inc()
		return nil
	}

	ref, ok := p.links.Extract(item.Body)
	if !ok {
		disposition := "unmatched"
		if ref.Class == domain.RefRejected {
			disposition = "rejected"
			stats.Rejected++
		} else {
			stats.Unmatched++
		}
		metrics.ItemsTotal.WithLabelValues(disposition).Inc()
		p.log.DebugObj("item has no qualifying reference", "extract_result", map[string]any{
			"item_id": item.ID,
			"stage":   "extract",
			"class":   ref.Class.String(),
			"url":     ref.URL,
		})
		if p.opts.MarkUnmatched {
			if err := p.store.MarkItem(item.ID); err != nil {
				return fmt.Errorf("mark item %s seen: %w", item.ID, err)
			}
		}
		return nil
	}

	rec := p.enricher.Enrich(ctx, ref)
	payload := sinks.Format(item, ref, rec, p.opts.Location)
	results := p.out.Deliver(ctx, payload)

	failed := sinks.Failed(results)
	stats.DeliveryFailures += len(failed)

	// Recorded after the attempt whatever the sink outcomes were, so a crash
	// can duplicate at most this one item.
	if err := p.store.MarkItem(item.ID); err != nil {
		return fmt.Errorf("mark item %s seen: %w", item.ID, err)
	}
	stats.Notified++
	metrics.ItemsTotal.WithLabelValues("notified").Inc()

	p.log.InfoObj("item processed", "item_result", map[string]any{
		"item_id":      item.ID,
		"title":        item.Title,
		"url":          ref.URL,
		"sinks":        len(results),
		"sinks_failed": len(failed),
		"poster":       rec.PosterPath != "",
		"rating":       rec.HasRating(),
		"description":  rec.HasDescription(),
	})
	return nil
}
