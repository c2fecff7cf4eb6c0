package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adda-Baaj/cine-khobor/internal/app"
	"github.com/Adda-Baaj/cine-khobor/internal/config"
	"github.com/Adda-Baaj/cine-khobor/internal/logger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "notifier failed: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "notifier",
		Short:         "Watch a movie feed and republish posts that link to a title page",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatcher(cmd.Context())
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the poll loop until interrupted (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatcher(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "once",
		Short: "Run a single poll cycle and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context())
		},
	})
	root.AddCommand(newSeenCmd())
	return root
}

// setup loads configuration and initializes the logger.
func setup() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.Init(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func runWatcher(parent context.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.InfoObj("notifier starting", "config", map[string]any{
		"app":              cfg.AppName,
		"env":              cfg.Env,
		"feed_url":         cfg.FeedURL,
		"storage_type":     cfg.StorageType,
		"poll_interval":    cfg.PollInterval.String(),
		"backoff_interval": cfg.BackoffInterval.String(),
		"metrics_addr":     cfg.MetricsAddr,
	})

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier, err := app.NewNotifier(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize notifier", "error", err.Error())
		return err
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			logger.ErrorObj("notifier close failed", "error", err.Error())
		}
	}()

	sup := app.NewSupervisor(log, app.DefaultSupervisorConfig())
	sup.Add(notifier.Watcher())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sup.Serve(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("supervisor: %w", err)
		}
		return nil
	})
	if cfg.MetricsAddr != "" {
		srv := app.NewMetricsServer(cfg.MetricsAddr, notifier.Watcher(), log)
		g.Go(func() error {
			return srv.Serve(gctx)
		})
	}

	err = g.Wait()
	logger.InfoObj("notifier stopped", "shutdown", map[string]any{"clean": err == nil})
	return err
}

func runOnce(parent context.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier, err := app.NewNotifier(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer notifier.Close()

	stats, err := notifier.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("cycle %s: %w", stats.CycleID, err)
	}
	fmt.Fprintf(os.Stdout, "cycle %s: fetched=%d seen=%d notified=%d unmatched=%d rejected=%d delivery_failures=%d\n",
		stats.CycleID, stats.Fetched, stats.Seen, stats.Notified, stats.Unmatched, stats.Rejected, stats.DeliveryFailures)
	return nil
}
