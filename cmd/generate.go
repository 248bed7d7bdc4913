package cmd

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Kokosalah45/html-to-image/internal/capture"
	"github.com/Kokosalah45/html-to-image/internal/clock/system"
	"github.com/Kokosalah45/html-to-image/internal/config"
	"github.com/Kokosalah45/html-to-image/internal/logging"
	kafkanotify "github.com/Kokosalah45/html-to-image/internal/notify/kafka"
	noopnotify "github.com/Kokosalah45/html-to-image/internal/notify/noop"
	pubsubnotify "github.com/Kokosalah45/html-to-image/internal/notify/pubsub"
	"github.com/Kokosalah45/html-to-image/internal/preflight"
	"github.com/Kokosalah45/html-to-image/internal/progress"
	"github.com/Kokosalah45/html-to-image/internal/progress/sinks"
	"github.com/Kokosalah45/html-to-image/internal/runner"
	gcssink "github.com/Kokosalah45/html-to-image/internal/sink/gcs"
	localsink "github.com/Kokosalah45/html-to-image/internal/sink/local"
	filestore "github.com/Kokosalah45/html-to-image/internal/store/file"
	memstore "github.com/Kokosalah45/html-to-image/internal/store/memory"
	pgstore "github.com/Kokosalah45/html-to-image/internal/store/postgres"
	"github.com/Kokosalah45/html-to-image/internal/tag"
)

// newGenerateCmd creates and configures the 'generate' subcommand, the
// pipeline's batch entry point.
func newGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Captures a tag image for every product whose price changed",
		Long: `Loads the product collection, serves the tag pages locally, screenshots
every record whose current price differs from the previously captured one,
and rewrites the collection with prices marked caught up.`,
		RunE: runGenerateCommand,
	}
}

func runGenerateCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx := cmd.Context()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sink, err := buildSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			logger.Warn("close artifact sink", zap.Error(cerr))
		}
	}()

	notifier, err := buildNotifier(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := notifier.Close(); cerr != nil {
			logger.Warn("close notifier", zap.Error(cerr))
		}
	}()

	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		return fmt.Errorf("init prometheus sink: %w", err)
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)
	defer closeHub(hub, logger)

	var checker *preflight.Checker
	if cfg.Preflight.Enabled {
		checker = preflight.New(preflight.Config{Timeout: cfg.Preflight.Timeout()}, logger)
	}

	factory := capture.NewFactory(capture.Config{
		ViewportWidth:  cfg.Capture.ViewportWidth,
		ViewportHeight: cfg.Capture.ViewportHeight,
		Scale:          cfg.Capture.Scale,
		Quality:        cfg.Capture.Quality,
		IdleWait:       cfg.Capture.IdleWait(),
		NavTimeout:     cfg.Capture.NavTimeout(),
	}, logger.Named("capture"))

	run := runner.New(
		runner.Config{
			ServerAddr:     cfg.Server.Addr(),
			ImagesDir:      cfg.Images.Dir,
			WorkerFraction: cfg.Capture.WorkerFraction,
			ConfirmOnly:    cfg.Store.ConfirmOnly,
		},
		store,
		sink,
		factory,
		notifier,
		checker,
		hub,
		system.New(),
		logger,
	)

	if _, err := run.Run(ctx); err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	return nil
}

func closeHub(hub *progress.Hub, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hub.Close(ctx); err != nil {
		logger.Warn("close progress hub", zap.Error(err))
	}
}

func buildStore(ctx context.Context, cfg config.Config) (tag.Store, error) {
	switch cfg.Store.Provider {
	case config.StoreFile:
		return filestore.New(cfg.Store.Path)
	case config.StorePostgres:
		return pgstore.New(ctx, pgstore.Config{
			DSN:   cfg.Store.Postgres.DSN,
			Table: cfg.Store.Postgres.Table,
		})
	case config.StoreMemory:
		return memstore.New(nil), nil
	default:
		return nil, fmt.Errorf("unknown store provider %q", cfg.Store.Provider)
	}
}

func buildSink(ctx context.Context, cfg config.Config) (tag.ArtifactSink, error) {
	switch cfg.Output.Provider {
	case config.OutputLocal:
		return localsink.New(localsink.Config{BaseDir: cfg.Output.Dir})
	case config.OutputGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		return gcssink.New(client, gcssink.Config{
			Bucket: cfg.Output.GCS.Bucket,
			Prefix: cfg.Output.GCS.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown output provider %q", cfg.Output.Provider)
	}
}

func buildNotifier(ctx context.Context, cfg config.Config) (tag.Notifier, error) {
	switch cfg.Notify.Provider {
	case config.NotifyNone:
		return noopnotify.New(), nil
	case config.NotifyPubSub:
		return pubsubnotify.New(ctx, pubsubnotify.Config{
			ProjectID: cfg.Notify.PubSub.ProjectID,
			TopicID:   cfg.Notify.PubSub.TopicID,
		})
	case config.NotifyKafka:
		return kafkanotify.New(kafkanotify.Config{
			Brokers: cfg.Notify.Kafka.Brokers,
			Topic:   cfg.Notify.Kafka.Topic,
		})
	default:
		return nil, fmt.Errorf("unknown notify provider %q", cfg.Notify.Provider)
	}
}
