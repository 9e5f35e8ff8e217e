package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/auriga-id/auriga/pkg/eventstore"
	"github.com/auriga-id/auriga/pkg/eventstore/sqlite"
	"github.com/auriga-id/auriga/pkg/logging"
	"github.com/auriga-id/auriga/pkg/messaging"
	"github.com/auriga-id/auriga/pkg/messaging/nats"
	"github.com/auriga-id/auriga/pkg/observability"
	"github.com/auriga-id/auriga/pkg/projection"
	"github.com/auriga-id/auriga/pkg/runner"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the event store, event bus and projection workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	telemetry, err := observability.Init(ctx, observability.Config{
		ServiceName:    "auriga",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer telemetry.Shutdown(context.Background())

	bus, embedded, err := newEventBus(cfg)
	if err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}
	defer bus.Close()
	if embedded != nil {
		defer embedded.Shutdown()
	}

	store, err := sqlite.New(
		sqlite.WithDSN(cfg.Database.DSN),
		sqlite.WithWALMode(cfg.Database.WALMode),
		sqlite.WithMaxOpenConns(cfg.Database.MaxOpenConns),
	)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	defer store.Close()

	if err := projection.Migrate(store.DB()); err != nil {
		return fmt.Errorf("migrate projections: %w", err)
	}

	metrics := telemetry.Metrics
	store.SetNotifier(func(ctx context.Context, events []eventstore.Event) {
		if err := bus.Publish(ctx, events); err != nil {
			logger.Error("publish committed events", "error", err)
			return
		}
		metrics.RecordBusMessages(ctx, len(events))
	})

	manager := projection.NewManager(
		store.DB(), store, store, projection.DefaultHandlers(),
		projection.WithLogger(logger.Named("projections")),
		projection.WithMetrics(metrics),
		projection.WithSignal(bus),
		projection.WithDiscoverInterval(cfg.Projection.DiscoverInterval),
		projection.WithPollInterval(cfg.Projection.PollInterval),
	)

	run := runner.New(
		[]runner.Service{manager},
		runner.WithLogger(logger),
	)
	return run.Run(ctx)
}

func newLogger(cfg *Config) (*logging.ZapLogger, error) {
	if cfg.Log.Development {
		return logging.NewDevelopment()
	}
	return logging.NewProduction()
}

func newEventBus(cfg *Config) (messaging.EventBus, *nats.EmbeddedServer, error) {
	if cfg.NATS.Embedded {
		return nats.NewEmbedded()
	}
	bus, err := nats.New(nats.Config{URL: cfg.NATS.URL, Name: "auriga"})
	if err != nil {
		return nil, nil, err
	}
	return bus, nil, nil
}
