package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cardshowfinder/scraper/internal/config"
	"github.com/cardshowfinder/scraper/internal/pipeline"
)

func testRuntime(cfg config.Config) *runtime {
	return &runtime{cfg: cfg, logger: zap.NewNop()}
}

func TestRunScrapeRequiresAPIKey(t *testing.T) {
	t.Parallel()

	err := runScrape(context.Background(), testRuntime(config.Config{}), "", false, false)
	var cfgErr *pipeline.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Contains(t, cfgErr.Reason, "api_key")
}

func TestRunScrapeRequiresDSNOutsideDryRun(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.Extractor.APIKey = "test-key"

	err := runScrape(context.Background(), testRuntime(cfg), "", true, false)
	var cfgErr *pipeline.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Contains(t, cfgErr.Reason, "db.dsn")
}

func TestRunBackfillGeoRequiresDSN(t *testing.T) {
	t.Parallel()

	err := runBackfillGeo(context.Background(), testRuntime(config.Config{}))
	var cfgErr *pipeline.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
