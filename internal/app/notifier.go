package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Adda-Baaj/cine-khobor/internal/config"
	"github.com/Adda-Baaj/cine-khobor/internal/logger"
	"github.com/Adda-Baaj/cine-khobor/internal/metrics"
	"github.com/Adda-Baaj/cine-khobor/internal/pipeline"
	"github.com/Adda-Baaj/cine-khobor/internal/storage"
	"github.com/Adda-Baaj/cine-khobor/pkg/enrich"
	"github.com/Adda-Baaj/cine-khobor/pkg/feed"
	"github.com/Adda-Baaj/cine-khobor/pkg/httpclient"
	"github.com/Adda-Baaj/cine-khobor/pkg/links"
	"github.com/Adda-Baaj/cine-khobor/pkg/sinks"
)

const (
	envTelegramSinkID = "telegram"
	envBlueskySinkID  = "bluesky"
)

// Notifier is the movie-post notifier runtime. It owns the seen-set store,
// the sinks and the pipeline processor, and hands the processor to a Watcher
// for the poll loop.
type Notifier struct {
	cfg       *config.Config
	processor *pipeline.Processor
	fanout    *sinks.Fanout
	store     storage.Store
	watcher   *Watcher
	log       logger.Logger
}

// NewNotifier builds a notifier runtime from cfg.
func NewNotifier(ctx context.Context, cfg *config.Config, log logger.Logger) (*Notifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	sinkCfgs, err := SinkConfigs(cfg)
	if err != nil {
		return nil, err
	}
	if len(sinkCfgs) == 0 {
		return nil, fmt.Errorf("no sinks configured")
	}
	sinkList, err := sinks.BuildAll(ctx, sinks.DefaultRegistry(), sinkCfgs, log)
	if err != nil {
		return nil, fmt.Errorf("build sinks: %w", err)
	}
	fanout := sinks.NewFanout(sinkList, log)
	sinkSummaries := make([]map[string]string, 0, len(sinkCfgs))
	for _, sc := range sinkCfgs {
		sinkSummaries = append(sinkSummaries, map[string]string{
			"id":   sc.ID,
			"type": sc.Type,
		})
	}
	log.InfoObj("sinks configured", "sinks_meta", map[string]any{
		"count": len(sinkSummaries),
		"sinks": sinkSummaries,
	})

	rules, err := enrich.LoadRules(cfg.ScrapeRulesFile)
	if err != nil {
		fanout.Close()
		return nil, fmt.Errorf("load scrape rules: %w", err)
	}

	store, err := OpenStore(cfg, log)
	if err != nil {
		fanout.Close()
		return nil, err
	}

	enrichClient := httpclient.NewGuardedClient(
		httpclient.NewRestyClient(cfg.HTTPTimeout, cfg.UserAgent),
		httpclient.GuardOptions{
			Name:          "enrichment",
			RatePerSecond: cfg.EnrichRatePerSec,
			OnStateChange: func(name, from, to string) {
				log.WarnObj("circuit breaker state changed", "breaker", map[string]any{
					"name": name,
					"from": from,
					"to":   to,
				})
			},
		},
	)

	processor := pipeline.NewProcessor(
		feed.NewPoller(cfg.FeedURL, cfg.UserAgent, httpclient.NewRestyClient(cfg.HTTPTimeout, cfg.UserAgent)),
		links.NewExtractor(cfg.TargetDomain, cfg.DenyDomains),
		enrich.NewProvider(enrichClient, enrich.Options{
			PostersDir: cfg.PostersDir,
			LookupURL:  cfg.PosterLookupURL,
			Rules:      rules,
			Log:        log,
		}),
		fanout,
		store,
		pipeline.Options{
			MarkUnmatched: cfg.MarkUnmatchedSeen,
			Location:      cfg.Location,
			Log:           log,
		},
	)

	n := &Notifier{
		cfg:       cfg,
		processor: processor,
		fanout:    fanout,
		store:     store,
		log:       log,
	}
	n.watcher = NewWatcher(processor, WatcherOptions{
		PollInterval:    cfg.PollInterval,
		BackoffInterval: cfg.BackoffInterval,
		Log:             log,
		AfterCycle:      n.refreshSeenGauge,
	})
	return n, nil
}

// OpenStore opens the configured seen-set backend and logs how many ids it holds.
func OpenStore(cfg *config.Config, log logger.Logger) (storage.Store, error) {
	log = logger.Ensure(log)
	path := cfg.StoragePath()
	store, err := storage.NewStore(cfg.StorageType, path, storage.Options{Log: log})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	count, err := store.Count()
	if err != nil {
		log.WarnObj("seen set count failed", "storage_error", map[string]any{
			"type":  cfg.StorageType,
			"error": err.Error(),
		})
	}
	metrics.SeenItems.Set(float64(count))
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":       cfg.StorageType,
		"path":       path,
		"seen_items": count,
	})
	return store, nil
}

// SinkConfigs merges the sinks derived from environment credentials with the
// entries of the optional sinks file and returns the enabled ones.
func SinkConfigs(cfg *config.Config) ([]sinks.SinkConfig, error) {
	var cfgs []sinks.SinkConfig
	timeout := int(cfg.HTTPTimeout.Seconds())

	if cfg.TelegramEnabled() {
		cfgs = append(cfgs, sinks.SinkConfig{
			ID:   envTelegramSinkID,
			Type: sinks.TypeTelegram,
			Telegram: &sinks.TelegramConfig{
				BotToken:       cfg.BotToken,
				ChatID:         cfg.GroupChatID,
				TimeoutSeconds: timeout,
			},
		})
	}
	if cfg.SocialEnabled() {
		cfgs = append(cfgs, sinks.SinkConfig{
			ID:   envBlueskySinkID,
			Type: sinks.TypeBluesky,
			Bluesky: &sinks.BlueskyConfig{
				Identifier:     cfg.SocialUsername,
				Password:       cfg.SocialPassword,
				PDS:            cfg.SocialPDSURL,
				TimeoutSeconds: timeout,
			},
		})
	}
	if strings.TrimSpace(cfg.SinksFile) != "" {
		fileReg, err := sinks.LoadRegistry(cfg.SinksFile)
		if err != nil {
			return nil, fmt.Errorf("load sinks file: %w", err)
		}
		cfgs = append(cfgs, fileReg.All()...)
	}

	reg, err := sinks.NewConfigRegistry(cfgs)
	if err != nil {
		return nil, fmt.Errorf("sinks registry: %w", err)
	}
	return reg.Enabled(), nil
}

// Watcher returns the poll loop driving this notifier.
func (n *Notifier) Watcher() *Watcher {
	return n.watcher
}

// Store returns the seen-set backend.
func (n *Notifier) Store() storage.Store {
	return n.store
}

// RunOnce runs a single cycle outside the loop.
func (n *Notifier) RunOnce(ctx context.Context) (pipeline.CycleStats, error) {
	stats, err := n.processor.RunCycle(ctx)
	n.refreshSeenGauge(stats)
	return stats, err
}

func (n *Notifier) refreshSeenGauge(pipeline.CycleStats) {
	count, err := n.store.Count()
	if err != nil {
		return
	}
	metrics.SeenItems.Set(float64(count))
}

// Close releases sink clients and the storage backend.
func (n *Notifier) Close() error {
	if n == nil {
		return nil
	}
	var errs []error
	if n.fanout != nil {
		if err := n.fanout.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sinks: %w", err))
		}
	}
	if n.store != nil {
		if err := n.store.Close(); err != nil {
			n.log.ErrorObj("storage close failed", "error", err)
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
