package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cardshowfinder/scraper/internal/clock/system"
	"github.com/cardshowfinder/scraper/internal/geocoder"
	"github.com/cardshowfinder/scraper/internal/logging"
	"github.com/cardshowfinder/scraper/internal/pipeline"
	"github.com/cardshowfinder/scraper/internal/store/postgres"
)

// newBackfillGeoCmd creates the 'backfill-geo' subcommand, which retries
// coordinate resolution for pending rows that were persisted without one.
func newBackfillGeoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill-geo",
		Short: "Re-geocodes pending shows that have no coordinates",
		Long: `Scans the pending queue for rows missing coordinates, retries the
address lookup, and falls back to a city centroid when the lookup still
misses. Decided rows are never touched.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			return runBackfillGeo(cmd.Context(), rt)
		},
	}
	return cmd
}

func runBackfillGeo(ctx context.Context, rt *runtime) error {
	cfg := rt.cfg
	logger := rt.logger

	if cfg.DB.DSN == "" {
		return &pipeline.ConfigError{Reason: "db.dsn is required"}
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return &pipeline.ConfigError{Reason: err.Error()}
	}
	defer pool.Close()

	store, err := postgres.NewPendingStore(pool, system.New())
	if err != nil {
		return &pipeline.ConfigError{Reason: err.Error()}
	}

	retry := pipeline.NewExponentialRetryPolicy(cfg.Retry.MaxAttempts, cfg.BackoffInitial(), cfg.BackoffMax())
	geo := geocoder.New(geocoder.Config{
		BaseURL:       cfg.Geocoder.BaseURL,
		Timeout:       cfg.GeocodeTimeout(),
		UserAgent:     cfg.Geocoder.UserAgent,
		MinImportance: cfg.Geocoder.MinImportance,
	}, retry, logging.WithComponent(logger, "geocoder"))

	shows, err := store.ListPendingWithoutCoordinates(ctx)
	if err != nil {
		return err
	}
	logger.Info("backfill candidates", zap.Int("count", len(shows)))

	var resolved, missed int
	for _, ps := range shows {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		coords, err := geo.Geocode(ctx, ps.Normalized.Address)
		if err != nil {
			logger.Warn("geocode failed",
				zap.String("id", ps.ID),
				zap.String("show", ps.Normalized.Name),
				zap.Error(err),
			)
		}
		if coords == nil {
			coords = geocoder.CityCentroid(ps.Normalized.City, ps.Normalized.State)
		}
		if coords == nil {
			missed++
			continue
		}

		if err := store.UpdateCoordinates(ctx, ps.ID, *coords); err != nil {
			logger.Error("update coordinates", zap.String("id", ps.ID), zap.Error(err))
			continue
		}
		resolved++
	}

	logger.Info("backfill complete",
		zap.Int("resolved", resolved),
		zap.Int("still_missing", missed),
	)
	return nil
}
