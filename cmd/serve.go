package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Kokosalah45/html-to-image/internal/config"
	"github.com/Kokosalah45/html-to-image/internal/logging"
	"github.com/Kokosalah45/html-to-image/internal/server"
)

// newServeCmd creates and configures the 'serve' subcommand.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serves the tag pages without capturing",
		Long: `Starts the tag page server against the current product collection and
keeps it up until interrupted. Useful for authoring the tag template: open
/product/0 in a browser and edit the styles live.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
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

	products, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}

	srv := server.New(server.Options{
		Addr:      cfg.Server.Addr(),
		Products:  products,
		ImagesDir: cfg.Images.Dir,
		Logger:    logger,
	})
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start tag server: %w", err)
	}
	logger.Info("tag server started",
		zap.String("addr", srv.Addr()),
		zap.Int("products", len(products)),
	)

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
