// Package cmd defines the CLI commands for the scraper executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cardshowfinder/scraper/internal/config"
	"github.com/cardshowfinder/scraper/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

// runtime carries the loaded config and logger to subcommands through the
// command context.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
}

type runtimeKeyType string

const runtimeKey runtimeKeyType = "runtime"

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cardshow-scraper",
		Short: "Ingests card show listings from hobby sites into a review queue.",
		Long: `cardshow-scraper crawls a catalog of collector-hobby sites, extracts card
show listings with an AI model, normalizes and geocodes them, and stages
them in a pending queue for human review. Nothing goes live without
approval.`,

		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development || verbose)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), runtimeKey, &runtime{cfg: cfg, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, ok := cmd.Context().Value(runtimeKey).(*runtime); ok && rt != nil {
				_ = rt.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (also honors SCRAPER_* env vars)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newBackfillGeoCmd())

	return cmd
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(runtimeKey).(*runtime)
	if !ok || rt == nil {
		return nil, fmt.Errorf("runtime not initialized")
	}
	return rt, nil
}

// Execute is the main entry point. Per-source failures are reported in the
// run summary and never affect the exit code; only startup and
// configuration problems exit non-zero.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
