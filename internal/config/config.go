// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every tunable the pipeline reads. The orchestrator and its
// components receive these values at construction so tests can vary them per
// run.
type Config struct {
	DB        DBConfig        `mapstructure:"db"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Chunker   ChunkerConfig   `mapstructure:"chunker"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DBConfig controls access to the Postgres catalog and queue.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// FetcherConfig governs the single-attempt HTML fetch per source.
type FetcherConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// ChunkerConfig sizes the HTML chunks handed to the extraction model.
type ChunkerConfig struct {
	MaxBytes int `mapstructure:"max_bytes"`
}

// ExtractorConfig configures the AI extraction endpoint.
type ExtractorConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	MaxTokens      int    `mapstructure:"max_tokens"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	// RequestsPerSecond caps extraction calls across all chunk workers to
	// respect the provider's rate limits.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// GeocoderConfig configures the address resolution endpoint.
type GeocoderConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	MinImportance  float64 `mapstructure:"min_importance"`
}

// CrawlConfig governs cycle-level scheduling and health tracking.
type CrawlConfig struct {
	SourceConcurrency  int `mapstructure:"source_concurrency"`
	ChunkConcurrency   int `mapstructure:"chunk_concurrency"`
	DecayFactor        int `mapstructure:"decay_factor"`
	AttentionThreshold int `mapstructure:"attention_threshold"`
}

// RetryConfig shapes the backoff policy wrapped around extractor and
// geocoder calls. The fetcher always gets exactly one attempt per cycle.
type RetryConfig struct {
	MaxAttempts      int `mapstructure:"max_attempts"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("fetcher.timeout_seconds", 25)
	v.SetDefault("fetcher.user_agent", "cardshow-scraper/0.1")
	v.SetDefault("chunker.max_bytes", 25*1024)
	v.SetDefault("extractor.model", "claude-sonnet-4-20250514")
	v.SetDefault("extractor.max_tokens", 4096)
	v.SetDefault("extractor.timeout_seconds", 20)
	v.SetDefault("extractor.requests_per_second", 2.0)
	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.timeout_seconds", 10)
	v.SetDefault("geocoder.user_agent", "cardshow-scraper/0.1")
	v.SetDefault("geocoder.min_importance", 0.2)
	v.SetDefault("crawl.source_concurrency", 4)
	v.SetDefault("crawl.chunk_concurrency", 2)
	v.SetDefault("crawl.decay_factor", 5)
	v.SetDefault("crawl.attention_threshold", 5)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff_initial_ms", 250)
	v.SetDefault("retry.backoff_max_ms", 5000)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. Credential checks
// happen at command startup because dry runs relax them.
func (c Config) Validate() error {
	if c.Fetcher.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetcher.timeout_seconds must be > 0")
	}
	if c.Chunker.MaxBytes <= 0 {
		return fmt.Errorf("chunker.max_bytes must be > 0")
	}
	if c.Extractor.TimeoutSeconds <= 0 {
		return fmt.Errorf("extractor.timeout_seconds must be > 0")
	}
	if c.Extractor.MaxTokens <= 0 {
		return fmt.Errorf("extractor.max_tokens must be > 0")
	}
	if c.Geocoder.TimeoutSeconds <= 0 {
		return fmt.Errorf("geocoder.timeout_seconds must be > 0")
	}
	if c.Crawl.SourceConcurrency <= 0 {
		return fmt.Errorf("crawl.source_concurrency must be > 0")
	}
	if c.Crawl.ChunkConcurrency <= 0 {
		return fmt.Errorf("crawl.chunk_concurrency must be > 0")
	}
	if c.Crawl.AttentionThreshold <= 0 {
		return fmt.Errorf("crawl.attention_threshold must be > 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	return nil
}

// FetchTimeout converts the fetcher timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetcher.TimeoutSeconds) * time.Second
}

// ExtractTimeout converts the extractor timeout into a duration.
func (c Config) ExtractTimeout() time.Duration {
	return time.Duration(c.Extractor.TimeoutSeconds) * time.Second
}

// GeocodeTimeout converts the geocoder timeout into a duration.
func (c Config) GeocodeTimeout() time.Duration {
	return time.Duration(c.Geocoder.TimeoutSeconds) * time.Second
}

// BackoffInitial converts the retry base delay into a duration.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.Retry.BackoffInitialMs) * time.Millisecond
}

// BackoffMax converts the retry delay cap into a duration.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.Retry.BackoffMaxMs) * time.Millisecond
}
