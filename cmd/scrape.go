package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cardshowfinder/scraper/internal/api"
	"github.com/cardshowfinder/scraper/internal/chunker"
	"github.com/cardshowfinder/scraper/internal/clock/system"
	"github.com/cardshowfinder/scraper/internal/config"
	"github.com/cardshowfinder/scraper/internal/extractor"
	collyfetcher "github.com/cardshowfinder/scraper/internal/fetcher/colly"
	"github.com/cardshowfinder/scraper/internal/geocoder"
	"github.com/cardshowfinder/scraper/internal/logging"
	"github.com/cardshowfinder/scraper/internal/normalizer"
	"github.com/cardshowfinder/scraper/internal/orchestrator"
	"github.com/cardshowfinder/scraper/internal/pipeline"
	"github.com/cardshowfinder/scraper/internal/store/memory"
	"github.com/cardshowfinder/scraper/internal/store/postgres"
)

// newScrapeCmd creates the 'scrape' subcommand, which runs one crawl cycle.
func newScrapeCmd() *cobra.Command {
	var (
		targetURL string
		dryRun    bool
		noGeocode bool
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Runs one crawl cycle over the source catalog",
		Long: `Fetches every enabled source once, extracts and normalizes show
candidates, and stages them in the pending review queue. With --url a single
page is processed regardless of the catalog. With --dry-run nothing durable
changes: candidates land in an in-memory queue and source health is left
untouched.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			return runScrape(cmd.Context(), rt, targetURL, dryRun, noGeocode)
		},
	}

	cmd.Flags().StringVar(&targetURL, "url", "", "process a single URL instead of the catalog")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "extract without persisting or updating source health")
	cmd.Flags().BoolVar(&noGeocode, "no-geocode", false, "skip coordinate resolution")

	return cmd
}

func runScrape(ctx context.Context, rt *runtime, targetURL string, dryRun, noGeocode bool) error {
	cfg := rt.cfg
	logger := rt.logger

	if cfg.Extractor.APIKey == "" {
		return &pipeline.ConfigError{Reason: "extractor.api_key is required"}
	}
	needsDB := !(dryRun && targetURL != "")
	if needsDB && cfg.DB.DSN == "" {
		return &pipeline.ConfigError{Reason: "db.dsn is required outside --dry-run --url mode"}
	}

	clk := system.New()

	var (
		sourceStore  pipeline.SourceStore
		pendingStore pipeline.PendingStore
	)
	if needsDB {
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			return &pipeline.ConfigError{Reason: err.Error()}
		}
		defer pool.Close()

		sourceStore, err = postgres.NewSourceStore(pool, cfg.Crawl.DecayFactor, cfg.Crawl.AttentionThreshold)
		if err != nil {
			return &pipeline.ConfigError{Reason: err.Error()}
		}
		if !dryRun {
			pendingStore, err = postgres.NewPendingStore(pool, clk)
			if err != nil {
				return &pipeline.ConfigError{Reason: err.Error()}
			}
		}
	} else {
		sourceStore = memory.NewSourceStore(nil, cfg.Crawl.DecayFactor, cfg.Crawl.AttentionThreshold)
	}
	if dryRun {
		// Candidates stay in memory so nothing durable changes.
		pendingStore = memory.NewPendingStore(clk)
	}

	retry := pipeline.NewExponentialRetryPolicy(cfg.Retry.MaxAttempts, cfg.BackoffInitial(), cfg.BackoffMax())

	var geo pipeline.Geocoder
	if !noGeocode {
		geo = geocoder.New(geocoder.Config{
			BaseURL:       cfg.Geocoder.BaseURL,
			Timeout:       cfg.GeocodeTimeout(),
			UserAgent:     cfg.Geocoder.UserAgent,
			MinImportance: cfg.Geocoder.MinImportance,
		}, retry, logging.WithComponent(logger, "geocoder"))
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		Sources: sourceStore,
		Pending: pendingStore,
		Fetcher: collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Fetcher.UserAgent,
			Timeout:   cfg.FetchTimeout(),
		}),
		Chunker: chunker.New(cfg.Chunker.MaxBytes),
		Extractor: extractor.New(cfg.Extractor.APIKey, extractor.Config{
			Model:             cfg.Extractor.Model,
			MaxTokens:         cfg.Extractor.MaxTokens,
			Timeout:           cfg.ExtractTimeout(),
			RequestsPerSecond: cfg.Extractor.RequestsPerSecond,
		}, retry, logging.WithComponent(logger, "extractor")),
		Normalizer: normalizer.New(logging.WithComponent(logger, "normalizer")),
		Geocoder:   geo,
		Clock:      clk,
		Logger:     logging.WithComponent(logger, "orchestrator"),
	}, orchestrator.Config{
		SourceConcurrency: cfg.Crawl.SourceConcurrency,
		ChunkConcurrency:  cfg.Crawl.ChunkConcurrency,
		DryRun:            dryRun,
	})
	if err != nil {
		return err
	}

	stopTelemetry := startTelemetry(ctx, cfg, logger)
	defer stopTelemetry()

	var summary pipeline.Summary
	if targetURL != "" {
		summary, err = orch.RunURL(ctx, targetURL)
	} else {
		summary, err = orch.RunCycle(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run cycle: %w", err)
	}

	logSummary(logger, summary, dryRun)
	return nil
}

// startTelemetry serves /metrics and /healthz for the duration of the run
// when an address is configured.
func startTelemetry(ctx context.Context, cfg config.Config, logger *zap.Logger) func() {
	if cfg.Metrics.Addr == "" {
		return func() {}
	}
	srvCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := api.NewServer(logger).Serve(srvCtx, cfg.Metrics.Addr); err != nil {
			logger.Warn("telemetry server", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func logSummary(logger *zap.Logger, summary pipeline.Summary, dryRun bool) {
	for _, oc := range summary.Sources {
		fields := []zap.Field{
			zap.String("url", oc.SourceURL),
			zap.Bool("success", oc.Success),
			zap.Int("chunks_ok", oc.ChunksOK),
			zap.Int("chunks_failed", oc.ChunksFailed),
			zap.Int("extracted", oc.Extracted),
			zap.Int("inserted", oc.Inserted),
			zap.Int("merged", oc.Merged),
			zap.Int("skipped", oc.Skipped),
			zap.Int("rejected", oc.Rejected),
		}
		if !oc.Success {
			fields = append(fields, zap.String("stage", oc.Stage), zap.String("error", oc.ErrorText))
		}
		logger.Info("source result", fields...)
	}
	logger.Info("cycle complete",
		zap.Bool("dry_run", dryRun),
		zap.Int("sources_succeeded", summary.SourcesSucceeded),
		zap.Int("sources_failed", summary.SourcesFailed),
		zap.Int("persisted", summary.TotalPersisted),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
}
