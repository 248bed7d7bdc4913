// Package cmd defines and implements the CLI commands for the html-to-image
// executable.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "html-to-image",
		Short: "Renders Arabic price-tag pages and captures them as webp images.",
		Long: `html-to-image drives the price-tag image pipeline: it loads the product
collection, serves a templated tag page for every record, and screenshots the
records whose price changed using headless Chrome workers.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (built-in defaults and PRICETAG_* environment variables apply)")

	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point. It installs the signal context so Ctrl-C
// drains browsers and the page server instead of killing them mid-capture.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
