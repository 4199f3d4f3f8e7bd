// Package geocoder resolves free-text addresses to coordinates using a
// Nominatim-compatible endpoint.
package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cardshowfinder/scraper/internal/pipeline"
)

// Config controls the geocoding client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// MinImportance rejects low-confidence matches; the pipeline persists
	// null coordinates rather than a guess.
	MinImportance float64
}

// Geocoder calls the search endpoint with a bounded timeout. A miss or a
// low-confidence match returns nil coordinates with no error; callers treat
// nil as "pending", never as a blocking failure.
type Geocoder struct {
	cfg        Config
	httpClient *http.Client
	retry      pipeline.RetryPolicy
	logger     *zap.Logger
}

type searchResult struct {
	Lat        string  `json:"lat"`
	Lon        string  `json:"lon"`
	Importance float64 `json:"importance"`
}

// New builds a Geocoder.
func New(cfg Config, retry pipeline.RetryPolicy, logger *zap.Logger) *Geocoder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if retry == nil {
		retry = pipeline.NewExponentialRetryPolicy(0, 0, 0)
	}
	return &Geocoder{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retry:      retry,
		logger:     logger,
	}
}

// Geocode resolves an address. Transport failures surface as a
// *pipeline.GeocodeError after the retry policy gives up; the caller logs it
// and persists the show with null coordinates.
func (g *Geocoder) Geocode(ctx context.Context, address string) (*pipeline.Coordinates, error) {
	if address == "" {
		return nil, nil
	}

	var results []searchResult
	err := pipeline.Retry(ctx, g.retry, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
		return g.search(callCtx, address, &results)
	})
	if err != nil {
		return nil, &pipeline.GeocodeError{Address: address, Err: err}
	}

	if len(results) == 0 {
		g.logger.Debug("geocode miss", zap.String("address", address))
		return nil, nil
	}
	top := results[0]
	if top.Importance < g.cfg.MinImportance {
		g.logger.Debug("geocode match below confidence floor",
			zap.String("address", address),
			zap.Float64("importance", top.Importance),
		)
		return nil, nil
	}

	lat, latErr := strconv.ParseFloat(top.Lat, 64)
	lon, lonErr := strconv.ParseFloat(top.Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, &pipeline.GeocodeError{
			Address: address,
			Err:     fmt.Errorf("malformed coordinates %q,%q", top.Lat, top.Lon),
		}
	}
	return &pipeline.Coordinates{Latitude: lat, Longitude: lon}, nil
}

func (g *Geocoder) search(ctx context.Context, address string, results *[]searchResult) error {
	endpoint := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", g.cfg.BaseURL, url.QueryEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if g.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", g.cfg.UserAgent)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("geocode status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(results); err != nil {
		return fmt.Errorf("decode geocode response: %w", err)
	}
	return nil
}
