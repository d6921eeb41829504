package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vincentbai/webhook-activity/internal/activity"
	"github.com/vincentbai/webhook-activity/internal/config"
	"github.com/vincentbai/webhook-activity/internal/database"
	"github.com/vincentbai/webhook-activity/internal/events"
	"github.com/vincentbai/webhook-activity/internal/metrics"
	"github.com/vincentbai/webhook-activity/internal/server"
)

// How long serve waits for the store before starting anyway.
const startupWait = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook receiver and events API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := cfg.Log.NewLogger(os.Stderr)
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		// An unreachable store is not fatal: requests answer 500 until it recovers.
		if err := database.WaitReady(ctx, store, startupWait); err != nil {
			logger.Warn("store not reachable, starting anyway", "driver", cfg.Store.Driver, "err", err)
		} else {
			logger.Info("store ready", "driver", cfg.Store.Driver)
		}

		publisher, err := newPublisher(cfg, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()

		service := activity.NewService(store,
			activity.WithPublisher(publisher),
			activity.WithMetrics(metrics.New()),
			activity.WithLogger(logger),
			activity.WithStoreTimeout(cfg.Store.Timeout),
		)

		srv := server.NewServer(service, cfg.Address,
			server.WithLogger(logger),
			server.WithAllowedOrigin(cfg.CORSOrigin()),
		)
		return srv.Start(ctx)
	},
}

// openStore opens the configured backend, creating the SQLite data
// directory when needed.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	if cfg.Store.Driver == database.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return database.Open(ctx, cfg.DatabaseConfig())
}

func newPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	switch {
	case cfg.Events.NATSURL != "":
		pub, err := events.NewNATSPublisher(cfg.Events.NATSURL)
		if err != nil {
			return nil, err
		}
		logger.Info("events enabled", "nats_url", cfg.Events.NATSURL)
		return pub, nil
	case len(cfg.Events.KafkaBrokers) > 0:
		pub, err := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		if err != nil {
			return nil, err
		}
		logger.Info("events enabled", "kafka_brokers", cfg.Events.KafkaBrokers, "topic", cfg.Events.KafkaTopic)
		return pub, nil
	default:
		logger.Info("events disabled (no broker configured)")
		return &events.NoopPublisher{}, nil
	}
}
